package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerRunsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	fired := make(chan struct{}, 16)

	cancel := NewTicker().SchedulePeriodic(func() {
		calls.Add(1)
		fired <- struct{}{}
	}, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("callback %d did not fire", i)
		}
	}

	cancel()
	cancel()

	// Let any in-flight tick settle before sampling.
	time.Sleep(20 * time.Millisecond)
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("callback kept firing after cancel: %d -> %d", after, calls.Load())
	}
}

func TestManualFire(t *testing.T) {
	m := NewManual()
	var order []string

	cancelA := m.SchedulePeriodic(func() { order = append(order, "a") }, time.Second)
	m.SchedulePeriodic(func() { order = append(order, "b") }, time.Second)

	m.Fire()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v", order)
	}

	cancelA()
	m.Fire()
	if len(order) != 3 || order[2] != "b" {
		t.Fatalf("order after cancel = %v", order)
	}
	if m.Active() != 1 {
		t.Fatalf("active = %d, want 1", m.Active())
	}
}
