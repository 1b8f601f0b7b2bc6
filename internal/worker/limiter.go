package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests with one token bucket per key. URL callers are keyed
// by HostKey, the oracle by provider name.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	waited  atomic.Int64
}

// NewLimiter creates a limiter allowing perSecond requests per key.
// A non-positive rate means unlimited.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// HostKey lowercases the host of rawURL and drops the port and a leading
// "www." so both spellings of a news site share one bucket.
func HostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// Wait blocks until the host of rawURL may be requested.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	key, err := HostKey(rawURL)
	if err != nil {
		return err
	}
	return l.WaitKey(ctx, key)
}

// WaitKey blocks until key may be used.
func (l *Limiter) WaitKey(ctx context.Context, key string) error {
	start := time.Now()
	err := l.bucket(key).Wait(ctx)
	l.waited.Add(int64(time.Since(start)))
	return err
}

// SlowHost paces the host of rawURL to at most one request per delay, as a
// robots.txt Crawl-delay asks. It never loosens an existing bucket.
func (l *Limiter) SlowHost(rawURL string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	key, err := HostKey(rawURL)
	if err != nil {
		return err
	}
	b := l.bucket(key)
	if every := rate.Every(delay); every < b.Limit() {
		b.SetLimit(every)
		b.SetBurst(1)
	}
	return nil
}

// Waited is the total time callers spent blocked.
func (l *Limiter) Waited() time.Duration {
	return time.Duration(l.waited.Load())
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}
