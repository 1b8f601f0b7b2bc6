package llm

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/worker"
)

// Task names one kind of oracle question and the schema its answer must satisfy.
type Task struct {
	Name   string
	Schema string
	System string
}

var (
	TaskRelevance = Task{Name: "relevance", Schema: "relevance.schema.json",
		System: "You are a news relevance filter. Answer with a single JSON object and nothing else."}
	TaskClustering = Task{Name: "clustering", Schema: "clusters.schema.json",
		System: "You are a news clustering engine. Answer with a single JSON object and nothing else."}
	TaskAnalysis = Task{Name: "analysis", Schema: "analysis.schema.json",
		System: "You are a technical news analyst. Answer with a single JSON object and nothing else."}
	TaskSynthesis = Task{Name: "synthesis", Schema: "synthesis.schema.json",
		System: "You are a master news editor. Answer with a single JSON object and nothing else."}
)

// Generator answers a prompt with a schema-valid JSON document decoded into out.
type Generator interface {
	Generate(ctx context.Context, task Task, prompt string, out interface{}) error
}

// Validator is implemented by response types with checks the schema cannot express.
type Validator interface {
	Validate() error
}

// retrySleepFunc is overridden in tests to avoid real backoff waits.
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Oracle wraps a Provider with pacing, bounded retries and strict response parsing.
type Oracle struct {
	provider       Provider
	limiter        *worker.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	calls          atomic.Int64
	tokens         atomic.Int64
	logger         zerolog.Logger
}

// NewOracle creates an oracle around provider.
func NewOracle(provider Provider, cfg model.OracleConfig, logger zerolog.Logger) *Oracle {
	o := &Oracle{
		provider:       provider,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With().Str("component", "oracle").Str("provider", provider.Name()).Logger(),
	}
	if o.maxRetries < 1 {
		o.maxRetries = 1
	}
	if cfg.RequestsPerSecond > 0 {
		o.limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	return o
}

// Calls returns the number of provider requests issued so far, retries included.
func (o *Oracle) Calls() int {
	return int(o.calls.Load())
}

// Tokens returns the input plus output tokens providers reported so far.
func (o *Oracle) Tokens() int {
	return int(o.tokens.Load())
}

// Generate implements Generator.
func (o *Oracle) Generate(ctx context.Context, task Task, prompt string, out interface{}) error {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		attempts = attempt
		if o.limiter != nil {
			if err := o.limiter.WaitKey(ctx, o.provider.Name()); err != nil {
				return &OracleError{Task: task.Name, Kind: KindCanceled, Attempts: attempt, Err: err}
			}
		}

		lastErr = o.call(ctx, task, prompt, out)
		if lastErr == nil {
			return nil
		}

		kind := classify(lastErr)
		if !kind.Retryable() || attempt == o.maxRetries || ctx.Err() != nil {
			break
		}

		delay := o.backoff(attempt)
		o.logger.Warn().
			Err(lastErr).
			Str("task", task.Name).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("oracle call failed, retrying")

		if err := retrySleepFunc(ctx, delay); err != nil {
			return &OracleError{Task: task.Name, Kind: KindCanceled, Attempts: attempt, Err: errors.Join(lastErr, err)}
		}
	}

	kind := classify(lastErr)
	if ctx.Err() != nil && kind != KindMalformed {
		kind = KindCanceled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
	}
	return &OracleError{Task: task.Name, Kind: kind, Attempts: attempts, Err: lastErr}
}

func (o *Oracle) call(ctx context.Context, task Task, prompt string, out interface{}) error {
	o.calls.Add(1)
	resp, err := o.provider.Complete(ctx, CompletionRequest{
		System: task.System,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return err
	}
	o.tokens.Add(int64(resp.Tokens()))
	if resp.Truncated {
		return Malformed("answer cut off at the output token limit (%d tokens)", resp.OutputTokens)
	}

	// Each attempt decodes into its own value so a rejected answer leaves
	// nothing behind for the next one.
	target, fresh := freshTarget(out)
	if err := decodeResponse(task, resp.Text, target); err != nil {
		return err
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &malformedError{err: err}
		}
	}
	if fresh.IsValid() {
		reflect.ValueOf(out).Elem().Set(fresh.Elem())
	}
	return nil
}

// freshTarget returns a new value of out's type that keeps only the
// unexported fields (a stage's expectations such as the batch size).
// Non-pointer targets are returned unchanged with an invalid Value.
func freshTarget(out interface{}) (interface{}, reflect.Value) {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return out, reflect.Value{}
	}
	fresh := reflect.New(v.Elem().Type())
	elem := fresh.Elem()
	if elem.Kind() == reflect.Struct {
		elem.Set(v.Elem())
		for i := 0; i < elem.NumField(); i++ {
			if f := elem.Field(i); f.CanSet() {
				f.Set(reflect.Zero(f.Type()))
			}
		}
	}
	return fresh.Interface(), fresh
}

func (o *Oracle) backoff(attempt int) time.Duration {
	delay := o.initialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if o.maxBackoff > 0 && delay >= o.maxBackoff {
			return o.maxBackoff
		}
	}
	if o.maxBackoff > 0 && delay > o.maxBackoff {
		return o.maxBackoff
	}
	return delay
}
