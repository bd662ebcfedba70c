package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/w1xm/smc_interface/internal/transport"
	"github.com/w1xm/smc_interface/smc"
)

func newSimServer(t *testing.T) *Server {
	t.Helper()
	sim, conn := smc.NewSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sim.Run(ctx)
	s := NewServer()
	s.r = smc.New(transport.NewIOConn(conn), smc.Config{
		SettleDelay:  time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  5 * time.Second,
	}, s.statusCallback)
	t.Cleanup(func() { s.r.Close() })
	return s
}

func TestStopDuringStepWait(t *testing.T) {
	s := newSimServer(t)
	// 100 degrees is 100000 counts, several simulated seconds of
	// travel.
	if err := s.dispatch(context.Background(), Command{Command: "set_degrees_per_step", Value: 100}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.dispatch(ctx, Command{Command: "step_wait"})
	}()
	time.Sleep(50 * time.Millisecond)
	stopped := make(chan error, 1)
	go func() {
		stopped <- s.dispatch(context.Background(), Command{Command: "stop"})
	}()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop blocked behind step_wait")
	}
	// Dropping the client cancels the wait.
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("step_wait error = %v, want context.Canceled", err)
	}
}

func TestEmergencyStopSkipsServerMutex(t *testing.T) {
	s := newSimServer(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(chan error, 1)
	go func() {
		done <- s.dispatch(context.Background(), Command{Command: "estop"})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("estop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("estop blocked on the server mutex")
	}
}
