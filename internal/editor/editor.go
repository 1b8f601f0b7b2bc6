package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/score"
	"github.com/ppiankov/curator/internal/worker"
)

const previewChars = 500

// Editor writes a digest entry for each enriched cluster and applies the
// publication gate.
type Editor struct {
	oracle llm.Generator
	gate   *score.Gate
	fanout int
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an Editor.
func New(oracle llm.Generator, cfg model.EditorConfig, fanout int, logger zerolog.Logger) *Editor {
	if fanout < 1 {
		fanout = 1
	}
	return &Editor{
		oracle: oracle,
		gate:   score.NewGate(cfg),
		fanout: fanout,
		logger: logger.With().Str("stage", "editor").Logger(),
		now:    time.Now,
	}
}

// Rejection records a cluster that was not published.
type Rejection struct {
	ClusterID string
	Label     string
	Reason    string
}

// Result is the Editor stage output. Stories are sorted for publication.
type Result struct {
	Stories  []model.Story
	Rejected []Rejection
	Failed   int
}

// Run synthesizes and gates clusters. A failed synthesis rejects that
// cluster only.
func (e *Editor) Run(ctx context.Context, clusters []model.EnrichedCluster) (Result, error) {
	outcomes := worker.Map(ctx, e.fanout, clusters, func(ctx context.Context, _ int, ec model.EnrichedCluster) (model.Draft, error) {
		var draft model.Draft
		if err := e.oracle.Generate(ctx, llm.TaskSynthesis, buildSynthesisPrompt(ec), &draft); err != nil {
			return model.Draft{}, err
		}
		draft.ClusterID = ec.Cluster.ID
		return draft, nil
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	publishedAt := e.now().UTC()
	var result Result
	for i, out := range outcomes {
		ec := clusters[i]
		if out.Err != nil {
			result.Failed++
			result.Rejected = append(result.Rejected, Rejection{ClusterID: ec.Cluster.ID, Label: ec.Cluster.Label, Reason: "synthesis failed"})
			e.logger.Warn().Err(out.Err).Str("cluster_id", ec.Cluster.ID).Msg("synthesis failed, rejecting cluster")
			continue
		}

		draft := out.Value
		decision := e.gate.Evaluate(draft.Metrics, ec.Enrichment)
		if !decision.Publish {
			result.Rejected = append(result.Rejected, Rejection{ClusterID: ec.Cluster.ID, Label: ec.Cluster.Label, Reason: decision.Reason})
			e.logger.Info().
				Str("cluster_id", ec.Cluster.ID).
				Int("snr", draft.Metrics.SNR).
				Int("importance", draft.Metrics.Importance).
				Int("breaking", draft.Metrics.Breaking).
				Str("reason", decision.Reason).
				Msg("story rejected")
			continue
		}
		result.Stories = append(result.Stories, e.gate.Story(draft, ec, decision, publishedAt))
	}

	score.SortStories(result.Stories)

	e.logger.Info().
		Int("published", len(result.Stories)).
		Int("rejected", len(result.Rejected)).
		Int("clusters", len(clusters)).
		Msg("editing complete")

	return result, nil
}

func buildSynthesisPrompt(ec model.EnrichedCluster) string {
	facts := "no key facts extracted"
	if len(ec.Enrichment.VerifiedFacts) > 0 {
		facts = strings.Join(ec.Enrichment.VerifiedFacts, "; ")
	}

	var b strings.Builder
	b.WriteString("Write a polished digest entry for this story cluster and score it.\n\n")
	fmt.Fprintf(&b, "cluster_id=%q label=%q depth=%d verified=%t\n", ec.Cluster.ID, ec.Cluster.Label, ec.Enrichment.KnowledgeDepth, ec.Enrichment.ClaimsVerified)
	fmt.Fprintf(&b, "facts=[%s]\n", facts)
	fmt.Fprintf(&b, "text_preview=%q\n", fetch.Truncate(ec.Enrichment.Text, previewChars))
	b.WriteString(`
Return a JSON object:
{"headline": "concise headline (max 100 chars)", "core_fact": "single most important fact (1 sentence)",
 "summary": "2-3 sentence summary with context and significance",
 "metrics": {"breaking": 7, "importance": 8, "snr": 6}}

Scoring guide (integers 1-10):
- breaking: how time-sensitive; 10 = happening right now, 1 = old or evergreen
- importance: how significant globally; 10 = world-changing, 1 = trivial
- snr: signal-to-noise; 10 = pure substance, 1 = mostly filler or clickbait
Return valid JSON only.`)
	return b.String()
}
