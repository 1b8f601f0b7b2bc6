package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
)

// scoringOracle scores each candidate line of the prompt with score(title).
type scoringOracle struct {
	mu      sync.Mutex
	score   func(title string) float64
	fail    func(prompt string) error
	short   bool
	prompts []string
}

func (o *scoringOracle) Generate(ctx context.Context, task llm.Task, prompt string, out interface{}) error {
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	o.mu.Unlock()

	if task.Name != llm.TaskRelevance.Name {
		return fmt.Errorf("unexpected task %s", task.Name)
	}
	if o.fail != nil {
		if err := o.fail(prompt); err != nil {
			return err
		}
	}

	var scores []float64
	for _, line := range strings.Split(prompt, "\n") {
		start, end := strings.Index(line, ". ["), strings.Index(line, "]")
		if start < 0 || end < start {
			continue
		}
		scores = append(scores, o.score(line[start+3:end]))
	}
	if o.short && len(scores) > 0 {
		scores = scores[:len(scores)-1]
	}

	data, _ := json.Marshal(map[string]interface{}{"scores": scores})
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	if v, ok := out.(llm.Validator); ok {
		if err := v.Validate(); err != nil {
			return &llm.OracleError{Task: task.Name, Kind: llm.KindMalformed, Attempts: 1, Err: err}
		}
	}
	return nil
}

func newTestSentinel(oracle llm.Generator, batchSize int) *Sentinel {
	s := New(oracle,
		model.SentinelConfig{RelevanceThreshold: 0.6},
		model.OracleConfig{BatchSize: batchSize, Fanout: 3},
		zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	return s
}

func numbered(n int) []model.Article {
	out := make([]model.Article, n)
	for i := range out {
		out[i] = model.Article{URL: fmt.Sprintf("https://example.com/%d", i), Title: fmt.Sprintf("story %02d", i)}
	}
	return out
}

func TestRulePass(t *testing.T) {
	persona := model.PersonaPreferences{
		MutedTopics: []string{"Celebrity gossip"},
		Snoozes: []model.Snooze{
			{Topic: "Bitcoin ETF", Until: time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)},
			{Topic: "Election", Until: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	articles := []model.Article{
		{Title: "CELEBRITY GOSSIP roundup"},
		{Title: "Markets", Snippet: "New bitcoin etf approved"},
		{Title: "Election results are in"},
		{Title: "Fusion breakthrough"},
	}

	kept, dropped := RulePass(articles, persona, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if dropped != 2 || len(kept) != 2 {
		t.Fatalf("expected 2 kept and 2 dropped, got %d/%d", len(kept), dropped)
	}
	if kept[0].Title != "Election results are in" || kept[1].Title != "Fusion breakthrough" {
		t.Errorf("unexpected survivors %+v", kept)
	}
}

func TestRun_ThresholdAndOrder(t *testing.T) {
	oracle := &scoringOracle{score: func(title string) float64 {
		var n int
		_, _ = fmt.Sscanf(title, "story %d", &n)
		if n%2 == 0 {
			return 0.9
		}
		return 0.59
	}}
	s := newTestSentinel(oracle, 4)

	res, err := s.Run(context.Background(), numbered(10), model.PersonaPreferences{Interests: []string{"science"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Batches != 3 || len(oracle.prompts) != 3 {
		t.Errorf("expected 3 batches, got %d (%d prompts)", res.Batches, len(oracle.prompts))
	}
	if len(res.Passed) != 5 || res.BelowThreshold != 5 {
		t.Fatalf("expected 5 passed and 5 below threshold, got %d/%d", len(res.Passed), res.BelowThreshold)
	}
	for i, a := range res.Passed {
		want := fmt.Sprintf("story %02d", i*2)
		if a.Title != want || a.Relevance != 0.9 {
			t.Errorf("position %d: expected %s with 0.9, got %s with %v", i, want, a.Title, a.Relevance)
		}
	}
	if !strings.Contains(oracle.prompts[0], "interested in: science") {
		t.Errorf("prompt must carry interests: %s", oracle.prompts[0])
	}
}

func TestRun_ScoreEqualToThresholdPasses(t *testing.T) {
	oracle := &scoringOracle{score: func(string) float64 { return 0.6 }}
	res, err := newTestSentinel(oracle, 25).Run(context.Background(), numbered(2), model.PersonaPreferences{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Passed) != 2 {
		t.Errorf("expected threshold to be inclusive, got %d passed", len(res.Passed))
	}
}

func TestRun_BatchFailureFailsStage(t *testing.T) {
	oracle := &scoringOracle{
		score: func(string) float64 { return 0.9 },
		fail: func(prompt string) error {
			if strings.Contains(prompt, "story 05") {
				return &llm.OracleError{Task: "relevance", Kind: llm.KindRateLimit, Attempts: 5, Err: errors.New("429")}
			}
			return nil
		},
	}
	_, err := newTestSentinel(oracle, 4).Run(context.Background(), numbered(10), model.PersonaPreferences{})

	var oerr *llm.OracleError
	if !errors.As(err, &oerr) || oerr.Kind != llm.KindRateLimit {
		t.Fatalf("expected wrapped rate limit OracleError, got %v", err)
	}
	if !strings.Contains(err.Error(), "relevance batch 2/3") {
		t.Errorf("expected failing batch in message, got %v", err)
	}
}

func TestRun_PartialScoresFailStage(t *testing.T) {
	oracle := &scoringOracle{score: func(string) float64 { return 0.9 }, short: true}
	_, err := newTestSentinel(oracle, 25).Run(context.Background(), numbered(3), model.PersonaPreferences{})

	var oerr *llm.OracleError
	if !errors.As(err, &oerr) || oerr.Kind != llm.KindMalformed {
		t.Fatalf("expected malformed OracleError for short score list, got %v", err)
	}
}

func TestRun_AllMutedSkipsOracle(t *testing.T) {
	oracle := &scoringOracle{score: func(string) float64 { return 1 }}
	res, err := newTestSentinel(oracle, 25).Run(context.Background(), numbered(3), model.PersonaPreferences{MutedTopics: []string{"story"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RuleFiltered != 3 || len(oracle.prompts) != 0 {
		t.Errorf("expected no oracle calls, got %d prompts and %d filtered", len(oracle.prompts), res.RuleFiltered)
	}
}
