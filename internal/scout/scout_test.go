package scout

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/model"
)

var now = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

const googleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Google News</title>
<item>
  <title>ECB raises rates - Reuters</title>
  <link>https://www.reuters.com/markets/ecb?utm_source=gn</link>
  <description>&lt;a href="https://www.reuters.com/markets/ecb"&gt;ECB raises rates&lt;/a&gt;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Reuters&lt;/font&gt;</description>
  <pubDate>Mon, 02 Mar 2026 04:00:00 GMT</pubDate>
</item>
<item>
  <title>Old news</title>
  <link>https://example.com/old</link>
  <pubDate>Tue, 24 Feb 2026 04:00:00 GMT</pubDate>
</item>
</channel></rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry>
  <title>Rover lands on Mars</title>
  <link rel="alternate" href="https://space.example/rover"/>
  <summary>&lt;p&gt;The rover touched down.&lt;/p&gt;</summary>
  <updated>2026-03-01T22:00:00Z</updated>
</entry>
<entry>
  <title>ECB raises rates</title>
  <link href="https://www.reuters.com/markets/ecb/"/>
  <updated>2026-03-01T23:00:00Z</updated>
</entry>
</feed>`

func testFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(fetch.Options{Timeout: 5 * time.Second, UserAgent: "CuratorTest/1.0"})
}

func TestRun_MergesSourcesInOrder(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss/search":
			queries = append(queries, r.URL.Query().Get("q")+"/"+r.URL.Query().Get("hl"))
			_, _ = fmt.Fprint(w, googleFeed)
		case "/atom":
			_, _ = fmt.Fprint(w, atomFeed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	feeds := filepath.Join(t.TempDir(), "feeds.txt")
	content := "# custom feeds\n\n" + server.URL + "/atom\n" + server.URL + "/missing\n"
	if err := os.WriteFile(feeds, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(testFetcher(), Options{
		Config: model.ScoutConfig{
			Languages:   []string{"en"},
			FeedsPath:   feeds,
			MaxAgeHours: 48,
			GoogleNews:  true,
		},
		Fanout:        1,
		GoogleNewsURL: server.URL + "/rss/search?q=%s&hl=%s&ceid=US:%s",
	}, zerolog.Nop())
	s.now = func() time.Time { return now }

	result, err := s.Run(context.Background(), model.PersonaPreferences{Interests: []string{"central banks"}}, time.Time{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(queries) != 1 || queries[0] != "central banks/en" {
		t.Errorf("unexpected google news queries %v", queries)
	}
	if result.Sources != 3 || result.Failed != 1 || result.Stale != 1 {
		t.Errorf("unexpected counters %+v", result)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("expected 2 articles after dedupe, got %d: %+v", len(result.Articles), result.Articles)
	}

	first := result.Articles[0]
	if first.Title != "ECB raises rates - Reuters" || first.Language != "en" || first.InterestQuery != "central banks" || first.Source != "google_news" {
		t.Errorf("unexpected first article %+v", first)
	}
	if first.Snippet != "ECB raises rates Reuters" {
		t.Errorf("expected stripped snippet, got %q", first.Snippet)
	}
	if result.Articles[1].URL != "https://space.example/rover" || result.Articles[1].Snippet != "The rover touched down." {
		t.Errorf("unexpected atom article %+v", result.Articles[1])
	}
	if !result.Articles[1].DiscoveredAt.Equal(now) {
		t.Errorf("expected discovered_at %v, got %v", now, result.Articles[1].DiscoveredAt)
	}
}

func TestSince(t *testing.T) {
	s := New(testFetcher(), Options{Config: model.ScoutConfig{MaxAgeHours: 24}}, zerolog.Nop())
	s.now = func() time.Time { return now }

	if got := s.Since(time.Time{}); !got.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("expected now-24h, got %v", got)
	}
	last := now.Add(-5 * time.Hour)
	if got := s.Since(last); !got.Equal(last) {
		t.Errorf("expected last run %v, got %v", last, got)
	}
}

func TestParseFeed_Unsupported(t *testing.T) {
	if _, err := ParseFeed([]byte(`<html><body>nope</body></html>`)); err == nil {
		t.Error("expected error for non-feed document")
	}
	if _, err := ParseFeed([]byte(``)); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain   text", "plain text"},
		{"<b>Bold</b> &amp; <i>italic</i>", "Bold & italic"},
		{"<p>a</p><script>alert(1)</script><p>b</p>", "a b"},
		{"caf&eacute;", "café"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", 600)
	if got := clip(long, maxSnippetChars); len([]rune(got)) != 500 {
		t.Errorf("expected 500 runes, got %d", len([]rune(got)))
	}
}

func TestLoadFeedURLs_Missing(t *testing.T) {
	urls, err := LoadFeedURLs(filepath.Join(t.TempDir(), "absent.txt"))
	if err != nil || urls != nil {
		t.Errorf("expected no feeds and no error, got %v %v", urls, err)
	}
}

func TestLoadCandidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")
	body := `[{"url":"https://a.example/1","title":"One"},{"url":"https://a.example/2","title":"Two","language":"fr"}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	articles, err := LoadCandidates(path, now)
	if err != nil {
		t.Fatalf("LoadCandidates failed: %v", err)
	}
	if len(articles) != 2 || articles[1].Language != "fr" || !articles[0].DiscoveredAt.Equal(now) {
		t.Errorf("unexpected candidates %+v", articles)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"title":"no url"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCandidates(bad, now); err == nil {
		t.Error("expected error for candidate without url")
	}
}
