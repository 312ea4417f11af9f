package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer schedules deferred work for the state machine (splash delay). The
// indirection lets tests fire timers deterministically.
type Timer interface {
	// ScheduleAfter schedules fn to run after delay, returning a cancel handle.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	// Cancel stops a scheduled timer. Unknown handles are ignored.
	Cancel(id string)
}

// SimpleTimer implements Timer on the standard time package.
type SimpleTimer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	nextID int64
}

// NewSimpleTimer creates a SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter schedules fn to run after delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		fn()
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.timers[id] = timer
	t.mu.Unlock()

	slog.Debug("SimpleTimer scheduled", "id", id, "delay", delay)
	return id, nil
}

// Cancel stops a scheduled timer.
func (t *SimpleTimer) Cancel(id string) {
	t.mu.Lock()
	timer, ok := t.timers[id]
	if ok {
		delete(t.timers, id)
	}
	t.mu.Unlock()
	if ok {
		timer.Stop()
		slog.Debug("SimpleTimer cancelled", "id", id)
	}
}

// ManualTimer is a test Timer fired explicitly.
type ManualTimer struct {
	mu      sync.Mutex
	pending map[string]func()
	nextID  int64
}

// NewManualTimer creates a ManualTimer.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{pending: make(map[string]func())}
}

func (t *ManualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("manual_%d", t.nextID)
	t.pending[id] = fn
	return id, nil
}

func (t *ManualTimer) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// FireAll runs and clears every pending timer.
func (t *ManualTimer) FireAll() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.pending))
	for _, fn := range t.pending {
		fns = append(fns, fn)
	}
	t.pending = make(map[string]func())
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
