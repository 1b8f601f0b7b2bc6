package score

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/curator/internal/model"
)

// Gate decides which synthesized clusters are published and explains why
type Gate struct {
	snrThreshold        int
	importanceThreshold int
	breakingThreshold   int
}

// NewGate creates a gate from editor thresholds
func NewGate(cfg model.EditorConfig) *Gate {
	return &Gate{
		snrThreshold:        cfg.SNRThreshold,
		importanceThreshold: cfg.ImportanceThreshold,
		breakingThreshold:   cfg.BreakingThreshold,
	}
}

// Decision is the gate verdict for one cluster
type Decision struct {
	Publish    bool
	IsBreaking bool
	Reason     string
	Signals    []model.Signal
}

// Evaluate applies the publication rule: SNR is a hard floor, then either
// importance or breaking must reach its bar.
func (g *Gate) Evaluate(m model.Metrics, e model.Enrichment) Decision {
	isBreaking := m.Breaking >= g.breakingThreshold
	snrOK := m.SNR >= g.snrThreshold
	importanceOK := m.Importance >= g.importanceThreshold

	signals := []model.Signal{
		g.snrSignal(m.SNR, snrOK),
		g.importanceSignal(m.Importance, importanceOK),
		g.breakingSignal(m.Breaking, isBreaking),
		depthSignal(e),
		verificationSignal(e),
	}

	d := Decision{IsBreaking: isBreaking, Signals: signals}
	switch {
	case !snrOK:
		d.Reason = fmt.Sprintf("snr %d below floor %d", m.SNR, g.snrThreshold)
	case importanceOK:
		d.Publish = true
		d.Reason = fmt.Sprintf("importance %d meets %d", m.Importance, g.importanceThreshold)
	case isBreaking:
		d.Publish = true
		d.Reason = fmt.Sprintf("breaking %d meets %d", m.Breaking, g.breakingThreshold)
	default:
		d.Reason = fmt.Sprintf("importance %d below %d and not breaking", m.Importance, g.importanceThreshold)
	}
	return d
}

// Story builds the published story for a draft the gate accepted
func (g *Gate) Story(draft model.Draft, ec model.EnrichedCluster, d Decision, publishedAt time.Time) model.Story {
	c := ec.Cluster
	sources := make([]string, 0, len(c.Members))
	seen := make(map[string]bool, len(c.Members))
	if c.Representative.URL != "" {
		sources = append(sources, c.Representative.URL)
		seen[c.Representative.URL] = true
	}
	for _, m := range c.Members {
		if !seen[m.URL] {
			seen[m.URL] = true
			sources = append(sources, m.URL)
		}
	}

	return model.Story{
		ClusterID:       c.ID,
		Label:           c.Label,
		Headline:        draft.Headline,
		CoreFact:        draft.CoreFact,
		Summary:         draft.Summary,
		Sources:         sources,
		SNRScore:        draft.Metrics.SNR,
		ImportanceScore: draft.Metrics.Importance,
		BreakingScore:   draft.Metrics.Breaking,
		IsBreaking:      d.IsBreaking,
		LanguageMix:     c.LanguageMix,
		PublishedAt:     publishedAt,
		Signals:         d.Signals,
	}
}

// SortStories orders stories by importance desc, snr desc, then cluster id asc
func SortStories(stories []model.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		a, b := stories[i], stories[j]
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore > b.ImportanceScore
		}
		if a.SNRScore != b.SNRScore {
			return a.SNRScore > b.SNRScore
		}
		return a.ClusterID < b.ClusterID
	})
}

func (g *Gate) snrSignal(snr int, ok bool) model.Signal {
	severity := model.SeverityInfo
	if !ok {
		severity = model.SeverityCritical
	}
	return model.Signal{
		Type:        model.SignalSNRFloor,
		Severity:    severity,
		Description: fmt.Sprintf("Signal-to-noise %d/10 (floor %d)", snr, g.snrThreshold),
		Data: map[string]interface{}{
			"snr":       snr,
			"threshold": g.snrThreshold,
			"passed":    ok,
			"formula":   "snr >= snr_threshold",
		},
	}
}

func (g *Gate) importanceSignal(importance int, ok bool) model.Signal {
	severity := model.SeverityInfo
	if !ok {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalImportanceBar,
		Severity:    severity,
		Description: fmt.Sprintf("Importance %d/10 (bar %d)", importance, g.importanceThreshold),
		Data: map[string]interface{}{
			"importance": importance,
			"threshold":  g.importanceThreshold,
			"passed":     ok,
			"formula":    "importance >= importance_threshold",
		},
	}
}

func (g *Gate) breakingSignal(breaking int, isBreaking bool) model.Signal {
	return model.Signal{
		Type:        model.SignalBreakingBypass,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Breaking %d/10 (bypass at %d)", breaking, g.breakingThreshold),
		Data: map[string]interface{}{
			"breaking":    breaking,
			"threshold":   g.breakingThreshold,
			"is_breaking": isBreaking,
			"formula":     "breaking >= breaking_threshold bypasses the importance bar",
		},
	}
}

func depthSignal(e model.Enrichment) model.Signal {
	severity := model.SeverityInfo
	if e.ScrapeFailed {
		severity = model.SeverityWarning
	}
	description := fmt.Sprintf("Knowledge depth %d/10", e.KnowledgeDepth)
	if e.ScrapeFailed {
		description += " (assessed from snippets)"
	}
	return model.Signal{
		Type:        model.SignalDepth,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"knowledge_depth": e.KnowledgeDepth,
			"scrape_failed":   e.ScrapeFailed,
		},
	}
}

func verificationSignal(e model.Enrichment) model.Signal {
	severity := model.SeverityInfo
	description := fmt.Sprintf("%d key facts, internally consistent", len(e.VerifiedFacts))
	if !e.ClaimsVerified {
		severity = model.SeverityWarning
		description = fmt.Sprintf("%d key facts, consistency not verified", len(e.VerifiedFacts))
	}
	return model.Signal{
		Type:        model.SignalVerification,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"key_facts":       len(e.VerifiedFacts),
			"claims_verified": e.ClaimsVerified,
		},
	}
}
