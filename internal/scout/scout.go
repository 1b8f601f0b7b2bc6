package scout

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/cluster"
	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/worker"
)

// DefaultGoogleNewsURL is the Google News RSS search endpoint. The
// placeholders are the query, the language and the language again.
const DefaultGoogleNewsURL = "https://news.google.com/rss/search?q=%s&hl=%s&gl=US&ceid=US:%s"

// FeedFetcher retrieves raw feed documents.
type FeedFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Options configures discovery.
type Options struct {
	Config        model.ScoutConfig
	Fanout        int
	GoogleNewsURL string
}

// Source is one feed to poll.
type Source struct {
	Kind     string // google_news or feed
	URL      string
	Language string
	Interest string
}

// Result is the discovery output.
type Result struct {
	Articles []model.Article
	Sources  int
	Failed   int
	Stale    int
	Since    time.Time
}

// Scout discovers candidate articles from Google News searches and custom feeds.
type Scout struct {
	fetcher FeedFetcher
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a Scout.
func New(fetcher FeedFetcher, opts Options, logger zerolog.Logger) *Scout {
	if opts.GoogleNewsURL == "" {
		opts.GoogleNewsURL = DefaultGoogleNewsURL
	}
	if opts.Fanout < 1 {
		opts.Fanout = 1
	}
	if opts.Config.MaxAgeHours <= 0 {
		opts.Config.MaxAgeHours = 48
	}
	return &Scout{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With().Str("component", "scout").Logger(),
		now:     time.Now,
	}
}

// Since returns the discovery cutoff: the last history update when known,
// otherwise now minus the configured maximum age.
func (s *Scout) Since(lastRun time.Time) time.Time {
	if !lastRun.IsZero() {
		return lastRun.UTC()
	}
	return s.now().UTC().Add(-time.Duration(s.opts.Config.MaxAgeHours) * time.Hour)
}

// Sources lists the feeds a run polls, in discovery order.
func (s *Scout) Sources(persona model.PersonaPreferences) ([]Source, error) {
	var sources []Source
	if s.opts.Config.GoogleNews {
		for _, interest := range persona.Interests {
			for _, lang := range s.opts.Config.Languages {
				q := url.QueryEscape(interest)
				l := url.QueryEscape(lang)
				sources = append(sources, Source{
					Kind:     "google_news",
					URL:      fmt.Sprintf(s.opts.GoogleNewsURL, q, l, l),
					Language: lang,
					Interest: interest,
				})
			}
		}
	}

	feeds, err := LoadFeedURLs(s.opts.Config.FeedsPath)
	if err != nil {
		return nil, err
	}
	for _, u := range feeds {
		sources = append(sources, Source{Kind: "feed", URL: u})
	}
	return sources, nil
}

type sourceItems struct {
	articles []model.Article
	stale    int
}

// Run polls every source concurrently and merges the results in source
// order, dropping items older than the cutoff and repeated URLs. A failing
// source is logged and skipped.
func (s *Scout) Run(ctx context.Context, persona model.PersonaPreferences, lastRun time.Time) (Result, error) {
	since := s.Since(lastRun)
	sources, err := s.Sources(persona)
	if err != nil {
		return Result{}, err
	}
	result := Result{Sources: len(sources), Since: since}
	s.logger.Info().
		Int("sources", len(sources)).
		Time("since", since).
		Msg("discovering candidates")

	outcomes := worker.Map(ctx, s.opts.Fanout, sources, func(ctx context.Context, _ int, src Source) (sourceItems, error) {
		return s.poll(ctx, src, since)
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	seen := make(map[string]struct{})
	for i, o := range outcomes {
		if o.Err != nil {
			result.Failed++
			s.logger.Warn().Err(o.Err).Str("source", sources[i].URL).Msg("source failed")
			continue
		}
		result.Stale += o.Value.stale
		for _, a := range o.Value.articles {
			key := cluster.NormalizeURL(a.URL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.Articles = append(result.Articles, a)
		}
	}

	s.logger.Info().
		Int("candidates", len(result.Articles)).
		Int("failed_sources", result.Failed).
		Int("stale", result.Stale).
		Msg("discovery complete")
	return result, nil
}

func (s *Scout) poll(ctx context.Context, src Source, since time.Time) (sourceItems, error) {
	res, err := s.fetcher.FetchWithRetry(ctx, src.URL)
	if err != nil {
		return sourceItems{}, err
	}
	items, err := ParseFeed(res.Body)
	if err != nil {
		return sourceItems{}, err
	}

	origin := src.Kind
	if src.Kind == "feed" {
		if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
			origin = u.Host
		}
	}

	now := s.now().UTC()
	var out sourceItems
	for _, it := range items {
		if !it.Published.IsZero() && it.Published.Before(since) {
			out.stale++
			continue
		}
		title := StripHTML(it.Title)
		if title == "" || it.Link == "" {
			continue
		}
		out.articles = append(out.articles, model.Article{
			URL:           it.Link,
			Title:         title,
			Snippet:       clip(StripHTML(it.Description), maxSnippetChars),
			Language:      src.Language,
			Source:        origin,
			InterestQuery: src.Interest,
			DiscoveredAt:  now,
		})
	}
	return out, nil
}

// LoadFeedURLs reads one feed URL per line; blank lines and # comments are
// ignored. A missing file yields no feeds.
func LoadFeedURLs(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feeds file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return urls, nil
}

// LoadCandidates reads a JSON array of articles, bypassing discovery.
func LoadCandidates(path string, now time.Time) ([]model.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var articles []model.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parse candidates %s: %w", path, err)
	}
	for i := range articles {
		if strings.TrimSpace(articles[i].URL) == "" {
			return nil, fmt.Errorf("candidate %d has no url", i)
		}
		if articles[i].DiscoveredAt.IsZero() {
			articles[i].DiscoveredAt = now.UTC()
		}
	}
	return articles, nil
}
