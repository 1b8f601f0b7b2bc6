package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/analyst"
	"github.com/ppiankov/curator/internal/authority"
	"github.com/ppiankov/curator/internal/cache"
	"github.com/ppiankov/curator/internal/cluster"
	"github.com/ppiankov/curator/internal/digest"
	"github.com/ppiankov/curator/internal/editor"
	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/history"
	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/persona"
	"github.com/ppiankov/curator/internal/scout"
	"github.com/ppiankov/curator/internal/sentinel"
	"github.com/ppiankov/curator/internal/worker"
)

// Stage names carried by StageError.
const (
	StagePersona   = "persona"
	StageHistory   = "history"
	StageScout     = "scout"
	StageSentinel  = "sentinel"
	StageArchitect = "architect"
	StageAnalyst   = "analyst"
	StageEditor    = "editor"
	StageDigest    = "digest"
)

// StageError reports the stage that aborted a run. Nothing is persisted
// when a run returns one.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Options are per-invocation switches.
type Options struct {
	Bootstrap      bool   // start from empty history when none exists
	CandidatesPath string // read candidates from JSON instead of discovery
	DryRun         bool   // run every stage but persist nothing
}

// Pipeline runs one digest from discovery to publication.
type Pipeline struct {
	cfg    model.Config
	opts   Options
	logger zerolog.Logger

	oracle   *llm.Oracle
	fetcher  *fetch.Fetcher
	pacer    *worker.Limiter
	articles analyst.ArticleFetcher
	cache    cache.Cache
	layered  *cache.LayeredCache

	openStore func(ctx context.Context) (history.Store, error)
	now       func() time.Time
}

// New validates cfg and builds a pipeline around the configured provider.
func New(cfg model.Config, opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Proxy))
	if err != nil {
		return nil, err
	}
	return NewWithProvider(cfg, opts, provider, logger)
}

// NewWithProvider is New with an explicit oracle provider.
func NewWithProvider(cfg model.Config, opts Options, provider llm.Provider, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		c       cache.Cache
		layered *cache.LayeredCache
	)
	if cfg.Cache.Enabled {
		layered = cache.NewLayeredCache(10*time.Minute, cfg.Cache.Dir, cfg.Cache.TTL)
		c = layered
	}

	pacer := worker.NewLimiter(1, 2)
	f := fetch.NewFetcher(fetch.Options{
		Timeout:       cfg.Analyst.FetchTimeout,
		UserAgent:     cfg.Analyst.UserAgent,
		MaxBytes:      cfg.Analyst.MaxBytes,
		RespectRobots: cfg.Analyst.RespectRobots,
		Limiter:       pacer,
		Cache:         c,
		CacheTTL:      cfg.Cache.TTL,
		HTTPProxy:     cfg.Proxy.HTTP,
		HTTPSProxy:    cfg.Proxy.HTTPS,
		NoProxy:       cfg.Proxy.NoProxy,
	})

	p := &Pipeline{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		oracle:   llm.NewOracle(provider, cfg.Oracle, logger),
		fetcher:  f,
		pacer:    pacer,
		articles: f,
		cache:    c,
		layered:  layered,
		now:      time.Now,
	}
	p.openStore = func(ctx context.Context) (history.Store, error) {
		return history.Open(ctx, cfg.History, opts.Bootstrap)
	}
	return p, nil
}

// Run executes the stages in order and publishes the digest. Persistence
// happens only after every stage succeeded: the digest is staged, history
// is appended, then the digest is committed.
func (p *Pipeline) Run(ctx context.Context) (*model.Digest, error) {
	now := p.now().UTC()
	runID := uuid.NewString()
	log := p.logger.With().Str("run_id", runID).Logger()

	prefs, err := persona.Load(p.cfg.PersonaPath)
	if err != nil {
		return nil, stageErr(StagePersona, err)
	}

	if p.layered != nil {
		if removed, err := p.layered.Prune(); err != nil {
			log.Warn().Err(err).Msg("cache prune failed")
		} else if removed > 0 {
			log.Debug().Int("removed", removed).Msg("pruned expired cache entries")
		}
	}

	store, err := p.openStore(ctx)
	if err != nil {
		log.Error().Err(err).Msg("history store unavailable")
		return nil, stageErr(StageHistory, err)
	}
	defer func() { _ = store.Close() }()

	hist, err := store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("history load failed")
		return nil, stageErr(StageHistory, err)
	}
	window := hist.Window(now, p.cfg.History.DedupWindowDays)
	log.Info().
		Int("records", len(hist.Records)).
		Int("window", len(window)).
		Msg("history loaded")

	candidates, err := p.discover(ctx, prefs, hist.LastUpdated, now)
	if err != nil {
		return nil, stageErr(StageScout, err)
	}

	sent, err := sentinel.New(p.oracle, p.cfg.Sentinel, p.cfg.Oracle, log).Run(ctx, candidates, prefs)
	if err != nil {
		return nil, stageErr(StageSentinel, err)
	}

	engine := cluster.NewEngine(p.oracle, authority.NewClassifier(&p.cfg.Authority), p.cfg.Architect, log)
	arch, err := engine.Run(ctx, sent.Passed, window)
	if err != nil {
		return nil, stageErr(StageArchitect, err)
	}

	an, err := analyst.New(p.oracle, p.articles, analyst.Options{
		Config:   p.cfg.Analyst,
		Fanout:   p.cfg.Oracle.Fanout,
		Cache:    p.cache,
		CacheTTL: p.cfg.Cache.TTL,
	}, log).Run(ctx, arch.Clusters)
	if err != nil {
		return nil, stageErr(StageAnalyst, err)
	}

	ed, err := editor.New(p.oracle, p.cfg.Editor, p.cfg.Oracle.Fanout, log).Run(ctx, an.Enriched)
	if err != nil {
		return nil, stageErr(StageEditor, err)
	}

	d := &model.Digest{
		Date:        now.Format("2006-01-02"),
		RunID:       runID,
		GeneratedAt: now,
		Stories:     ed.Stories,
		Metadata: model.RunMetadata{
			TotalDiscovered:    len(candidates),
			AfterSentinel:      len(sent.Passed),
			ClustersFormed:     arch.Formed,
			Deduped:            len(arch.Deduped),
			AfterDedup:         len(arch.Clusters),
			AfterAnalyst:       len(an.Enriched),
			Rejected:           len(ed.Rejected),
			StoriesPublished:   len(ed.Stories),
			OracleCalls:        p.oracle.Calls(),
			OracleTokens:       p.oracle.Tokens(),
			IdentityCollisions: arch.Collisions,
		},
	}
	if d.Stories == nil {
		d.Stories = []model.Story{}
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageEditor, err)
	}

	if p.opts.DryRun {
		log.Info().Int("stories", len(d.Stories)).Msg("dry run, nothing persisted")
		return d, nil
	}

	if err := p.publish(ctx, store, d, publishedRecords(d.Stories, an.Enriched, now), log); err != nil {
		return nil, err
	}

	event := log.Info().
		Str("date", d.Date).
		Int("stories", len(d.Stories)).
		Int("oracle_calls", d.Metadata.OracleCalls).
		Dur("fetch_wait", p.pacer.Waited())
	if p.layered != nil {
		stats := p.layered.Stats()
		event = event.Int64("cache_hits", stats.Hits).Float64("cache_hit_ratio", stats.HitRatio())
	}
	event.Msg("digest published")
	return d, nil
}

func (p *Pipeline) discover(ctx context.Context, prefs model.PersonaPreferences, lastRun, now time.Time) ([]model.Article, error) {
	if p.opts.CandidatesPath != "" {
		articles, err := scout.LoadCandidates(p.opts.CandidatesPath, now)
		if err != nil {
			return nil, err
		}
		p.logger.Info().Int("candidates", len(articles)).Str("path", p.opts.CandidatesPath).Msg("loaded candidates")
		return articles, nil
	}

	res, err := scout.New(p.fetcher, scout.Options{
		Config: p.cfg.Scout,
		Fanout: p.cfg.Oracle.Fanout,
	}, p.logger).Run(ctx, prefs, lastRun)
	if err != nil {
		return nil, err
	}
	if len(res.Articles) == 0 {
		p.logger.Warn().Int("sources", res.Sources).Msg("no candidates discovered")
	}
	return res.Articles, nil
}

func (p *Pipeline) publish(ctx context.Context, store history.Store, d *model.Digest, records []model.HistoryRecord, log zerolog.Logger) error {
	staged, err := digest.NewWriter(p.cfg.OutputPath, log).Stage(d)
	if err != nil {
		return stageErr(StageDigest, err)
	}

	if err := store.Append(ctx, records, d.GeneratedAt); err != nil {
		staged.Discard()
		log.Error().Err(err).Msg("history append failed, digest discarded")
		return stageErr(StageHistory, err)
	}

	if err := staged.Commit(); err != nil {
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ClusterID)
		}
		log.Error().Err(err).
			Strs("recorded_cluster_ids", ids).
			Msg("digest commit failed after history append, clusters recorded without a published digest")
		return stageErr(StageDigest, err)
	}
	return nil
}

// publishedRecords builds history records for the published stories only.
func publishedRecords(stories []model.Story, enriched []model.EnrichedCluster, now time.Time) []model.HistoryRecord {
	members := make(map[string][]string, len(enriched))
	for _, ec := range enriched {
		members[ec.Cluster.ID] = ec.Cluster.MemberURLs
	}

	records := make([]model.HistoryRecord, 0, len(stories))
	for _, s := range stories {
		urls, ok := members[s.ClusterID]
		if !ok || len(urls) == 0 {
			continue
		}
		records = append(records, model.HistoryRecord{
			ClusterID:   s.ClusterID,
			Label:       s.Label,
			MemberURLs:  urls,
			PublishedAt: now,
		})
	}
	return records
}
