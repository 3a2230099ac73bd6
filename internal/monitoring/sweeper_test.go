package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingTarget struct {
	sweeps atomic.Int32
	err    error
}

func (c *countingTarget) Sweep(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("sweep without deadline")
	}
	c.sweeps.Add(1)
	return c.err
}

func TestSweeper_SweepsUntilStopped(t *testing.T) {
	target := &countingTarget{err: errors.New("shared store down")}
	s := NewSweeper(target, 5*time.Millisecond, time.Second)
	go s.Run()

	deadline := time.Now().Add(5 * time.Second)
	for target.sweeps.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d sweeps before the deadline", target.sweeps.Load())
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	after := target.sweeps.Load()
	time.Sleep(20 * time.Millisecond)
	if got := target.sweeps.Load(); got != after {
		t.Fatalf("sweeps continued after Stop: %d -> %d", after, got)
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(&countingTarget{}, 0, 0)
	if s.interval != time.Minute || s.timeout != 5*time.Second {
		t.Fatalf("interval = %s, timeout = %s", s.interval, s.timeout)
	}
}
