package smc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollUntilTimesOut(t *testing.T) {
	var reads int
	read := func() (int, error) {
		reads++
		return 1, nil
	}
	start := time.Now()
	err := pollUntil(context.Background(), read, 2, 0, 50*time.Millisecond, 500*time.Millisecond)
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("pollUntil error = %v, want ErrTimedOut", err)
	}
	if elapsed < 450*time.Millisecond || elapsed > 700*time.Millisecond {
		t.Errorf("pollUntil took %v, want ~500ms", elapsed)
	}
	if reads > 11 {
		t.Errorf("pollUntil performed %d reads, want at most 11", reads)
	}
}

func TestPollUntilImmediate(t *testing.T) {
	var reads int
	read := func() (int, error) {
		reads++
		return 2000, nil
	}
	if err := pollUntil(context.Background(), read, 2000, 0, 50*time.Millisecond, time.Second); err != nil {
		t.Fatalf("pollUntil: %v", err)
	}
	if reads != 1 {
		t.Errorf("pollUntil performed %d reads, want 1", reads)
	}
}

func TestPollUntilTolerance(t *testing.T) {
	read := func() (int, error) {
		return 1998, nil
	}
	if err := pollUntil(context.Background(), read, 2000, 2, 10*time.Millisecond, time.Second); err != nil {
		t.Fatalf("pollUntil with tolerance 2: %v", err)
	}
	err := pollUntil(context.Background(), read, 2000, 1, 10*time.Millisecond, 50*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("pollUntil with tolerance 1 error = %v, want ErrTimedOut", err)
	}
}

func TestPollUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pollUntil(ctx, func() (int, error) { return 1, nil }, 2, 0, 50*time.Millisecond, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("pollUntil error = %v, want context.Canceled", err)
	}
}

func TestPollUntilReadError(t *testing.T) {
	readErr := errors.New("boom")
	err := pollUntil(context.Background(), func() (int, error) { return 0, readErr }, 2, 0, 50*time.Millisecond, time.Second)
	if !errors.Is(err, readErr) {
		t.Fatalf("pollUntil error = %v, want %v", err, readErr)
	}
}
