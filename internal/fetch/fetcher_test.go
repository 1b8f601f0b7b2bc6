package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/curator/internal/cache"
	"github.com/ppiankov/curator/internal/worker"
)

func newTestFetcher(robots bool) *Fetcher {
	return NewFetcher(Options{
		Timeout:       5 * time.Second,
		UserAgent:     "CuratorTest/1.0",
		MaxBytes:      1 << 20,
		RespectRobots: robots,
	})
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "CuratorTest/1.0" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	result, err := newTestFetcher(false).FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result.Body) != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", result.Body)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	result, err := newTestFetcher(false).FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(result.Body) != "<html>OK</html>" {
		t.Errorf("Unexpected body: %s", result.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	_, err := newTestFetcher(false).FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchArticle_PlainTextAndCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprint(w, "Line one   with   spaces\r\n\r\nLine two")
	}))
	defer server.Close()

	f := NewFetcher(Options{
		Timeout:       5 * time.Second,
		UserAgent:     "CuratorTest/1.0",
		RespectRobots: true,
		Cache:         cache.NewMemoryCache(time.Minute, time.Minute),
		CacheTTL:      time.Minute,
	})

	for i := 0; i < 2; i++ {
		text, err := f.FetchArticle(context.Background(), server.URL+"/story")
		if err != nil {
			t.Fatalf("FetchArticle failed: %v", err)
		}
		if text != "Line one with spaces\n\nLine two" {
			t.Errorf("unexpected text %q", text)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected second call to be served from cache, got %d hits", hits.Load())
	}
}

func TestFetchArticle_DisallowedByRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		t.Errorf("disallowed path fetched: %s", r.URL.Path)
	}))
	defer server.Close()

	_, err := newTestFetcher(true).FetchArticle(context.Background(), server.URL+"/private/story")
	if err != ErrDisallowed {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
}

func TestExtractText_HTML(t *testing.T) {
	html := `<html><head><title>Rates</title></head><body>
<nav>Home | World | Sport</nav>
<article><h1>Central bank raises rates</h1>
<p>The central bank raised its main interest rate by a quarter point on Tuesday, citing persistent inflation in services and wages across the euro area.</p>
<p>Economists had expected the move after months of strong data, and markets reacted calmly to the announcement made in Frankfurt.</p>
</article></body></html>`

	text, err := ExtractText([]byte(html), "text/html", "https://example.com/rates")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if !strings.Contains(text, "raised its main interest rate") {
		t.Errorf("expected article body in text, got %q", text)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo world", 5); got != "héllo" {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
	if got := Truncate("short", 0); got != "short" {
		t.Errorf("expected no truncation for 0 limit, got %q", got)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("Curator/0.1 (+https://github.com/ppiankov/curator)"); got != "Curator" {
		t.Errorf("expected Curator, got %s", got)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "localhost,.internal")

	req, _ := http.NewRequest(http.MethodGet, "http://api.internal/x", nil)
	if u, err := proxy(req); err != nil || u != nil {
		t.Errorf("expected bypass for .internal, got %v %v", u, err)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.com/x", nil)
	u, err := proxy(req)
	if err != nil || u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("expected proxy for example.com, got %v %v", u, err)
	}
}

func TestRobotsChecker_UnreachableHostAllowedAndRemembered(t *testing.T) {
	r := NewRobotsChecker("CuratorTest/1.0", time.Second)

	allowed, delay, err := r.CanFetch(context.Background(), "http://127.0.0.1:1/story")
	if err != nil || !allowed || delay != 0 {
		t.Fatalf("expected unreachable robots.txt to allow, got %v %v %v", allowed, delay, err)
	}
	r.mu.RLock()
	_, cached := r.cache["127.0.0.1:1"]
	r.mu.RUnlock()
	if !cached {
		t.Error("expected unreachable host to be cached")
	}
}

func TestFetchArticle_CrawlDelayPacesHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nCrawl-delay: 1\n")
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "story body")
	}))
	defer server.Close()

	limiter := worker.NewLimiter(100, 5)
	f := NewFetcher(Options{
		Timeout:       5 * time.Second,
		UserAgent:     "CuratorTest/1.0",
		RespectRobots: true,
		Limiter:       limiter,
	})
	if _, err := f.FetchArticle(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("FetchArticle failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := f.FetchArticle(ctx, server.URL+"/b"); err == nil {
		t.Error("expected second fetch inside the crawl delay to wait past a short deadline")
	}
}
