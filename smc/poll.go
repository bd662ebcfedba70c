package smc

import (
	"context"
	"fmt"
	"time"
)

// pollUntil samples read at a fixed interval until it returns a value
// within tolerance of target, then returns nil. It fails with
// ErrTimedOut once elapsed time reaches timeout, or with ctx.Err() if
// ctx is canceled first. The first sample is taken immediately.
func pollUntil(ctx context.Context, read func() (int, error), target, tolerance int, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		got, err := read()
		if err != nil {
			return err
		}
		if abs(got-target) <= tolerance {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: at %d, want %d", ErrTimedOut, got, target)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
