// Package scheduler runs callbacks on a fixed cadence.
package scheduler

import (
	"slices"
	"sync"
	"time"
)

// CancelFunc stops a periodic schedule. Calling it more than once is safe.
type CancelFunc func()

// Scheduler invokes callback every interval until the returned CancelFunc is
// called.
type Scheduler interface {
	SchedulePeriodic(callback func(), interval time.Duration) CancelFunc
}

// Ticker is a Scheduler backed by time.Ticker. Each schedule runs callbacks
// sequentially on its own goroutine.
type Ticker struct{}

// NewTicker creates a Ticker scheduler.
func NewTicker() *Ticker {
	return &Ticker{}
}

// SchedulePeriodic implements Scheduler.
func (Ticker) SchedulePeriodic(callback func(), interval time.Duration) CancelFunc {
	t := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				callback()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// Manual is a Scheduler driven by explicit Fire calls, for tests and for
// replaying elapsed time.
type Manual struct {
	mu    sync.Mutex
	next  int
	tasks map[int]func()
}

// NewManual creates an empty Manual scheduler.
func NewManual() *Manual {
	return &Manual{tasks: make(map[int]func())}
}

// SchedulePeriodic implements Scheduler. The interval is ignored.
func (m *Manual) SchedulePeriodic(callback func(), _ time.Duration) CancelFunc {
	m.mu.Lock()
	id := m.next
	m.next++
	m.tasks[id] = callback
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
	}
}

// Fire runs every active callback once, in registration order.
func (m *Manual) Fire() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		m.mu.Lock()
		cb, ok := m.tasks[id]
		m.mu.Unlock()
		if ok {
			cb()
		}
	}
}

// Active returns the number of live schedules.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
