package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.limit != rate.Inf {
		t.Errorf("expected unlimited rate for 0, got %v", l.limit)
	}
	if l.burst != 1 {
		t.Errorf("expected burst 1, got %d", l.burst)
	}
}

func TestHostKey(t *testing.T) {
	cases := map[string]string{
		"https://www.Reuters.com/markets/":  "reuters.com",
		"http://lemonde.fr:8080/economie":   "lemonde.fr",
		"https://news.google.com/rss?q=ecb": "news.google.com",
	}
	for in, want := range cases {
		got, err := HostKey(in)
		if err != nil {
			t.Errorf("HostKey(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("HostKey(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := HostKey("not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimiter_SharedHostBucket(t *testing.T) {
	l := NewLimiter(0.001, 1)
	if err := l.Wait(context.Background(), "https://www.reuters.com/a"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "https://reuters.com/b"); err == nil {
		t.Error("expected bare host to share the exhausted www bucket")
	}
	if err := l.Wait(context.Background(), "https://elpais.com/"); err != nil {
		t.Errorf("other host should pass: %v", err)
	}
}

func TestLimiter_WaitKeyCancelled(t *testing.T) {
	l := NewLimiter(0.001, 1)
	if err := l.WaitKey(context.Background(), "gemini"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitKey(ctx, "gemini"); err == nil {
		t.Error("expected second wait on exhausted key to fail under short deadline")
	}
}

func TestLimiter_SlowHost(t *testing.T) {
	l := NewLimiter(100, 5)
	if err := l.SlowHost("https://slow.example/feed", 40*time.Millisecond); err != nil {
		t.Fatalf("SlowHost failed: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, "https://slow.example/story"); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
	if d := time.Since(start); d < 30*time.Millisecond {
		t.Errorf("expected crawl delay pacing, second request came after %v", d)
	}
	if l.Waited() <= 0 {
		t.Error("expected waited time to be recorded")
	}

	// A looser delay must not speed the host back up.
	_ = l.SlowHost("https://slow.example/", time.Millisecond)
	if got := l.bucket("slow.example").Limit(); got != rate.Every(40*time.Millisecond) {
		t.Errorf("expected limit to stay at crawl delay, got %v", got)
	}
}
