package cluster

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/authority"
	"github.com/ppiankov/curator/internal/langdetect"
	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
)

const unknownLanguage = "unknown"

// Engine groups accepted articles into event clusters and drops clusters
// already published within the history window.
type Engine struct {
	grouper    Grouper
	fallback   Grouper
	classifier *authority.Classifier
	cfg        model.ArchitectConfig
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine builds an engine for cfg.Grouping. With "oracle" the lexical
// grouper is used as fallback when the oracle fails.
func NewEngine(oracle llm.Generator, classifier *authority.Classifier, cfg model.ArchitectConfig, logger zerolog.Logger) *Engine {
	lexical := LexicalGrouper{TitleSimilarity: cfg.TitleSimilarity, SimhashDistance: cfg.SimhashDistance}
	e := &Engine{
		grouper:    lexical,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger.With().Str("stage", "architect").Logger(),
		now:        time.Now,
	}
	if cfg.Grouping == "oracle" && oracle != nil {
		e.grouper = OracleGrouper{Oracle: oracle}
		e.fallback = lexical
	}
	if e.classifier == nil {
		e.classifier = authority.NewClassifier(nil)
	}
	return e
}

// Result is the Architect stage output.
type Result struct {
	Clusters   []model.Cluster
	Formed     int
	Deduped    []model.Cluster
	Collisions int
	Fallback   bool
}

// DedupResult splits clusters into fresh and already-published ones.
type DedupResult struct {
	Kept       []model.Cluster
	Duplicates []model.Cluster
	Collisions int
}

// Run clusters articles and deduplicates the clusters against window.
func (e *Engine) Run(ctx context.Context, articles []model.ScoredArticle, window []model.HistoryRecord) (Result, error) {
	unique := collapseDuplicates(articles)
	if len(unique) == 0 {
		return Result{}, nil
	}

	groups, fallback, err := e.group(ctx, unique)
	if err != nil {
		return Result{}, err
	}

	clusters, collisions := e.build(unique, groups)
	dedup := e.Dedup(clusters, window)

	e.logger.Info().
		Int("articles", len(unique)).
		Int("formed", len(clusters)).
		Int("deduped", len(dedup.Duplicates)).
		Int("kept", len(dedup.Kept)).
		Bool("lexical_fallback", fallback).
		Msg("architect complete")

	return Result{
		Clusters:   dedup.Kept,
		Formed:     len(clusters),
		Deduped:    dedup.Duplicates,
		Collisions: collisions + dedup.Collisions,
		Fallback:   fallback,
	}, nil
}

func (e *Engine) group(ctx context.Context, articles []model.ScoredArticle) ([]Group, bool, error) {
	groups, err := e.grouper.Group(ctx, articles)
	if err == nil {
		return groups, false, nil
	}

	var oerr *llm.OracleError
	if e.fallback == nil || ctx.Err() != nil || !errors.As(err, &oerr) {
		return nil, false, err
	}

	e.logger.Warn().Err(err).Msg("oracle clustering failed, falling back to lexical grouping")
	groups, err = e.fallback.Group(ctx, articles)
	if err != nil {
		return nil, true, err
	}
	return groups, true, nil
}

// build converts groups to clusters in first-member input order.
func (e *Engine) build(articles []model.ScoredArticle, groups []Group) ([]model.Cluster, int) {
	for i := range groups {
		sort.Ints(groups[i].Indices)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Indices[0] < groups[j].Indices[0]
	})

	minSize := e.cfg.MinClusterSize
	if minSize < 1 {
		minSize = 1
	}

	now := e.now().UTC()
	byID := make(map[string][]string)
	collisions := 0
	clusters := make([]model.Cluster, 0, len(groups))

	for _, g := range groups {
		if len(g.Indices) < minSize {
			e.logger.Debug().Str("label", g.Label).Int("size", len(g.Indices)).Msg("group below minimum cluster size")
			continue
		}

		c := e.newCluster(articles, g, now)
		if len(c.MemberURLs) == 0 {
			continue
		}

		if prev, ok := byID[c.ID]; ok && !sameURLSet(prev, c.MemberURLs) {
			collisions++
			e.logger.Warn().
				Str("cluster_id", c.ID).
				Strs("existing_urls", prev).
				Strs("member_urls", c.MemberURLs).
				Msg("identity collision between clusters in this run")
		}
		byID[c.ID] = c.MemberURLs
		clusters = append(clusters, c)
	}
	return clusters, collisions
}

func (e *Engine) newCluster(articles []model.ScoredArticle, g Group, now time.Time) model.Cluster {
	members := make([]model.ScoredArticle, 0, len(g.Indices))
	urls := make([]string, 0, len(g.Indices))
	mix := make(map[string]int)
	var total float64

	for _, idx := range g.Indices {
		a := articles[idx]
		members = append(members, a)
		urls = append(urls, a.URL)
		total += a.Relevance

		lang := langdetect.Resolve(a.Language, a.TopicText())
		if lang == "" {
			lang = unknownLanguage
		}
		mix[lang]++
	}

	memberURLs := NormalizeURLs(urls)
	return model.Cluster{
		ID:             ClusterID(memberURLs),
		Label:          g.Label,
		MemberURLs:     memberURLs,
		Members:        members,
		Representative: e.representative(articles, g),
		LanguageMix:    mix,
		FirstSeen:      now,
		CandidateScore: total / float64(len(g.Indices)),
	}
}

// representative prefers the grouper's pick, then the most authoritative
// source, then input order.
func (e *Engine) representative(articles []model.ScoredArticle, g Group) model.Article {
	if g.Best >= 0 && containsInt(g.Indices, g.Best) {
		return articles[g.Best].Article
	}

	best := g.Indices[0]
	bestRank := authority.Rank(e.classifier.Classify(articles[best].URL))
	for _, idx := range g.Indices[1:] {
		if rank := authority.Rank(e.classifier.Classify(articles[idx].URL)); rank < bestRank {
			best, bestRank = idx, rank
		}
	}
	return articles[best].Article
}

// Dedup drops clusters already published within window: same id with the
// same URL set, or a share of member URLs seen in the window above the
// overlap threshold. A same-id record with a different URL set is an identity
// collision; it is logged and never treated as a duplicate by id alone.
func (e *Engine) Dedup(clusters []model.Cluster, window []model.HistoryRecord) DedupResult {
	seenURLs := make(map[string]struct{})
	recordsByID := make(map[string][]model.HistoryRecord)
	for _, rec := range window {
		for _, u := range rec.MemberURLs {
			seenURLs[NormalizeURL(u)] = struct{}{}
		}
		recordsByID[rec.ClusterID] = append(recordsByID[rec.ClusterID], rec)
	}

	var result DedupResult
	for _, c := range clusters {
		if len(c.MemberURLs) == 0 {
			continue
		}

		duplicate := false
		for _, rec := range recordsByID[c.ID] {
			if sameURLSet(rec.MemberURLs, c.MemberURLs) {
				duplicate = true
				break
			}
			result.Collisions++
			e.logger.Warn().
				Str("cluster_id", c.ID).
				Strs("history_urls", rec.MemberURLs).
				Strs("member_urls", c.MemberURLs).
				Msg("identity collision with history record")
		}

		overlap := overlapFraction(c.MemberURLs, seenURLs)
		if !duplicate && overlap > e.cfg.OverlapThreshold {
			duplicate = true
		}

		if duplicate {
			e.logger.Info().Str("cluster_id", c.ID).Str("label", c.Label).Float64("overlap", overlap).Msg("deduped against history")
			result.Duplicates = append(result.Duplicates, c)
			continue
		}
		result.Kept = append(result.Kept, c)
	}
	return result
}

func overlapFraction(urls []string, seen map[string]struct{}) float64 {
	if len(urls) == 0 {
		return 0
	}
	hits := 0
	for _, u := range urls {
		if _, ok := seen[NormalizeURL(u)]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(urls))
}

// collapseDuplicates keeps the first article per normalized URL.
func collapseDuplicates(articles []model.ScoredArticle) []model.ScoredArticle {
	seen := make(map[string]struct{}, len(articles))
	out := make([]model.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		key := NormalizeURL(a.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
