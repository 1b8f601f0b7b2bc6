package sentinel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/worker"
)

// Sentinel filters discovered articles by persona rules and oracle relevance.
type Sentinel struct {
	oracle    llm.Generator
	threshold float64
	batchSize int
	fanout    int
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a Sentinel.
func New(oracle llm.Generator, cfg model.SentinelConfig, oc model.OracleConfig, logger zerolog.Logger) *Sentinel {
	s := &Sentinel{
		oracle:    oracle,
		threshold: cfg.RelevanceThreshold,
		batchSize: oc.BatchSize,
		fanout:    oc.Fanout,
		logger:    logger.With().Str("stage", "sentinel").Logger(),
		now:       time.Now,
	}
	if s.batchSize < 1 {
		s.batchSize = 25
	}
	if s.fanout < 1 {
		s.fanout = 1
	}
	return s
}

// Result is the Sentinel stage output.
type Result struct {
	Passed         []model.ScoredArticle
	RuleFiltered   int
	BelowThreshold int
	Batches        int
}

// RulePass drops articles whose title or snippet mentions a muted topic or
// an actively snoozed one. Order is preserved.
func RulePass(articles []model.Article, persona model.PersonaPreferences, today time.Time) ([]model.Article, int) {
	kept := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		text := a.TopicText()
		if persona.IsMuted(text) || persona.IsSnoozed(text, today) {
			continue
		}
		kept = append(kept, a)
	}
	return kept, len(articles) - len(kept)
}

type scoresResponse struct {
	Scores   []float64 `json:"scores"`
	expected int
}

// Validate requires exactly one score per article in the batch.
func (r *scoresResponse) Validate() error {
	if len(r.Scores) != r.expected {
		return fmt.Errorf("expected %d scores, got %d", r.expected, len(r.Scores))
	}
	return nil
}

// Run applies the rule pass, then scores survivors in concurrent batches.
// Any batch that cannot be scored fails the whole stage.
func (s *Sentinel) Run(ctx context.Context, articles []model.Article, persona model.PersonaPreferences) (Result, error) {
	survivors, ruleFiltered := RulePass(articles, persona, s.now())
	s.logger.Info().
		Int("passed", len(survivors)).
		Int("total", len(articles)).
		Msg("rule pass complete")

	result := Result{RuleFiltered: ruleFiltered}
	if len(survivors) == 0 {
		return result, nil
	}

	batches := chunk(survivors, s.batchSize)
	result.Batches = len(batches)

	outcomes := worker.Map(ctx, s.fanout, batches, func(ctx context.Context, i int, batch []model.Article) ([]float64, error) {
		resp := &scoresResponse{expected: len(batch)}
		if err := s.oracle.Generate(ctx, llm.TaskRelevance, buildRelevancePrompt(batch, persona), resp); err != nil {
			return nil, err
		}
		return resp.Scores, nil
	})

	for i, out := range outcomes {
		if out.Err != nil {
			return Result{}, fmt.Errorf("relevance batch %d/%d: %w", i+1, len(batches), out.Err)
		}
		for j, a := range batches[i] {
			score := out.Value[j]
			if score < s.threshold {
				result.BelowThreshold++
				continue
			}
			result.Passed = append(result.Passed, model.ScoredArticle{Article: a, Relevance: score})
		}
	}

	s.logger.Info().
		Int("passed", len(result.Passed)).
		Int("scored", len(survivors)).
		Float64("threshold", s.threshold).
		Int("batches", len(batches)).
		Msg("relevance pass complete")

	return result, nil
}

func chunk(articles []model.Article, size int) [][]model.Article {
	batches := make([][]model.Article, 0, (len(articles)+size-1)/size)
	for start := 0; start < len(articles); start += size {
		end := start + size
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, articles[start:end])
	}
	return batches
}

func buildRelevancePrompt(batch []model.Article, persona model.PersonaPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The reader is interested in: %s\n", strings.Join(persona.Interests, ", "))
	if len(persona.Notes) > 0 {
		fmt.Fprintf(&b, "Reader notes: %s\n", strings.Join(persona.Notes, "; "))
	}
	b.WriteString("\nRate each candidate's relevance from 0.0 to 1.0 based on how well it matches these interests.\n\nCandidates:\n")
	for i, a := range batch {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, a.Title, a.Snippet)
	}
	fmt.Fprintf(&b, `
Return a JSON object: {"scores": [0.85, 0.3, ...]}
The scores array must have exactly %d entries, one per candidate, in order.
Return valid JSON only.`, len(batch))
	return b.String()
}
