package worker

import "context"

// Outcome is the result slot for one input item.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Map runs fn over items with at most workers calls in flight and returns
// one outcome per item in input order, whatever the completion order.
// Items never started because ctx ended get ctx.Err().
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	// Each task owns its own slot, so no lock is needed; Wait orders the writes.
	started := make([]bool, len(items))
	pool := NewPool(ctx, workers)
	for i, item := range items {
		i, item := i, item
		accepted := pool.Submit(func(ctx context.Context) {
			started[i] = true
			value, err := fn(ctx, i, item)
			outcomes[i] = Outcome[R]{Value: value, Err: err}
		})
		if !accepted {
			break
		}
	}
	pool.Wait()

	for i := range outcomes {
		if started[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i].Err = err
	}
	return outcomes
}
