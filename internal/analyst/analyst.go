package analyst

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/cache"
	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/worker"
)

// ArticleFetcher returns the readable text of a page.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, rawURL string) (string, error)
}

// Analyst scrapes each cluster's coverage and asks the oracle how much
// substantive, verifiable information it carries.
type Analyst struct {
	oracle   llm.Generator
	fetcher  ArticleFetcher
	cache    cache.Cache
	cacheTTL time.Duration
	minDepth int
	maxChars int
	fanout   int
	logger   zerolog.Logger
}

// Options configures an Analyst. Cache may be nil.
type Options struct {
	Config   model.AnalystConfig
	Fanout   int
	Cache    cache.Cache
	CacheTTL time.Duration
}

// New creates an Analyst.
func New(oracle llm.Generator, fetcher ArticleFetcher, opts Options, logger zerolog.Logger) *Analyst {
	a := &Analyst{
		oracle:   oracle,
		fetcher:  fetcher,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		minDepth: opts.Config.MinDepth,
		maxChars: opts.Config.MaxChars,
		fanout:   opts.Fanout,
		logger:   logger.With().Str("stage", "analyst").Logger(),
	}
	if a.fanout < 1 {
		a.fanout = 1
	}
	if a.maxChars <= 0 {
		a.maxChars = 4000
	}
	return a
}

// Result is the Analyst stage output.
type Result struct {
	Enriched       []model.EnrichedCluster
	Shallow        int
	Failed         int
	ScrapeFailures int
	CacheHits      int
}

type analysisResponse struct {
	KnowledgeDepth int      `json:"knowledge_depth"`
	KeyFacts       []string `json:"key_facts"`
	ClaimsVerified bool     `json:"claims_verified"`
}

type verdict struct {
	enrichment model.Enrichment
	cached     bool
}

// Run enriches clusters concurrently and keeps those deep enough to publish.
// Output keeps input order. Per-cluster oracle failures drop that cluster only.
func (a *Analyst) Run(ctx context.Context, clusters []model.Cluster) (Result, error) {
	outcomes := worker.Map(ctx, a.fanout, clusters, func(ctx context.Context, _ int, c model.Cluster) (verdict, error) {
		return a.analyze(ctx, c)
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	for i, out := range outcomes {
		c := clusters[i]
		if out.Err != nil {
			result.Failed++
			a.logger.Warn().Err(out.Err).Str("cluster_id", c.ID).Str("label", c.Label).Msg("analysis failed, dropping cluster")
			continue
		}

		e := out.Value.enrichment
		if out.Value.cached {
			result.CacheHits++
		}
		if e.ScrapeFailed {
			result.ScrapeFailures++
		}
		if !e.DepthOK {
			result.Shallow++
			a.logger.Info().
				Str("cluster_id", c.ID).
				Int("knowledge_depth", e.KnowledgeDepth).
				Int("min_depth", a.minDepth).
				Msg("cluster below depth threshold")
			continue
		}
		result.Enriched = append(result.Enriched, model.EnrichedCluster{Cluster: c, Enrichment: e})
	}

	a.logger.Info().
		Int("clusters", len(clusters)).
		Int("kept", len(result.Enriched)).
		Int("shallow", result.Shallow).
		Int("failed", result.Failed).
		Int("cache_hits", result.CacheHits).
		Msg("analysis complete")

	return result, nil
}

func (a *Analyst) analyze(ctx context.Context, c model.Cluster) (verdict, error) {
	text, scrapeFailed := a.content(ctx, c)

	key := cacheKey(c.ID, text)
	var resp analysisResponse
	cached := false
	if a.cache != nil {
		if data, ok := a.cache.Get(key); ok && json.Unmarshal(data, &resp) == nil {
			cached = true
		}
	}

	if !cached {
		if err := a.oracle.Generate(ctx, llm.TaskAnalysis, buildAnalysisPrompt(c, text), &resp); err != nil {
			return verdict{}, err
		}
		if a.cache != nil {
			if data, err := json.Marshal(resp); err == nil {
				if err := a.cache.Set(key, data, a.cacheTTL); err != nil {
					a.logger.Debug().Err(err).Str("cluster_id", c.ID).Msg("cache write failed")
				}
			}
		}
	}

	return verdict{
		enrichment: model.Enrichment{
			ClusterID:      c.ID,
			DepthOK:        resp.KnowledgeDepth >= a.minDepth,
			KnowledgeDepth: resp.KnowledgeDepth,
			VerifiedFacts:  resp.KeyFacts,
			ClaimsVerified: resp.ClaimsVerified,
			ScrapeFailed:   scrapeFailed,
			Text:           text,
		},
		cached: cached,
	}, nil
}

// content tries the representative, then the other members, then falls
// back to the members' snippets.
func (a *Analyst) content(ctx context.Context, c model.Cluster) (string, bool) {
	urls := []string{c.Representative.URL}
	for _, m := range c.Members {
		if m.URL != c.Representative.URL {
			urls = append(urls, m.URL)
		}
	}

	if a.fetcher != nil {
		for _, u := range urls {
			if u == "" || ctx.Err() != nil {
				continue
			}
			text, err := a.fetcher.FetchArticle(ctx, u)
			if err != nil {
				a.logger.Debug().Err(err).Str("url", u).Msg("scrape failed")
				continue
			}
			if strings.TrimSpace(text) != "" {
				return fetch.Truncate(text, a.maxChars), false
			}
		}
	}

	snippets := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if s := strings.TrimSpace(m.Snippet); s != "" {
			snippets = append(snippets, s)
		}
	}
	return fetch.Truncate(strings.Join(snippets, " "), a.maxChars), true
}

func cacheKey(clusterID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return cache.CacheKey("analysis", clusterID+":"+hex.EncodeToString(sum[:]))
}

func buildAnalysisPrompt(c model.Cluster, text string) string {
	if strings.TrimSpace(text) == "" {
		text = "No content available"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this news cluster.\n\n[CLUSTER id=%q label=%q]\n%s\n[/CLUSTER]\n", c.ID, c.Label, text)
	b.WriteString(`
Return a JSON object:
{"knowledge_depth": 7, "key_facts": ["fact 1", "fact 2", "fact 3"], "claims_verified": true}

- knowledge_depth: 1-10, how much substantive new information the coverage carries
- key_facts: the 3-5 most important factual claims
- claims_verified: true if the facts are internally consistent across the coverage
Return valid JSON only.`)
	return b.String()
}
