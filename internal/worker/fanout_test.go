package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMap_PreservesInputOrder(t *testing.T) {
	items := []int{50, 10, 40, 0, 30, 20}

	// Later items finish first.
	outcomes := Map(context.Background(), 3, items, func(ctx context.Context, i int, ms int) (string, error) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return fmt.Sprintf("item-%d", i), nil
	})

	if len(outcomes) != len(items) {
		t.Fatalf("expected %d outcomes, got %d", len(items), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Err != nil {
			t.Errorf("slot %d: unexpected error %v", i, o.Err)
		}
		if want := fmt.Sprintf("item-%d", i); o.Value != want {
			t.Errorf("slot %d: expected %s, got %s", i, want, o.Value)
		}
	}
}

func TestMap_ErrorsStayInTheirSlot(t *testing.T) {
	outcomes := Map(context.Background(), 2, []string{"a", "b", "c"}, func(ctx context.Context, i int, s string) (string, error) {
		if s == "b" {
			return "", errors.New("boom")
		}
		return s, nil
	})

	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("expected error in slot 1")
	}
}

func TestMap_Empty(t *testing.T) {
	outcomes := Map(context.Background(), 4, []int(nil), func(ctx context.Context, i int, n int) (int, error) {
		t.Error("fn must not be called for empty input")
		return 0, nil
	})
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := Map(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, i int, n int) (int, error) {
		return n, nil
	})
	for i, o := range outcomes {
		if o.Err == nil && o.Value == 0 {
			t.Errorf("slot %d: expected either a value or an error", i)
		}
	}
}
