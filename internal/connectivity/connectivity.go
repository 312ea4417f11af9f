// Package connectivity provides the network reachability monitor for the
// Academy Shell.
//
// The monitor wraps a platform reachability collaborator behind a single
// upstream subscription and fans change events out to any number of
// listeners. Ambiguous reachability (unknown internet reachability) is
// treated as online so devices that never report it are not shown a false
// offline screen.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Sample is one reachability reading from the platform.
type Sample struct {
	// Connected reports whether any network interface is up.
	Connected bool
	// InternetReachable is nil when the platform cannot tell.
	InternetReachable *bool
}

// Online derives the boolean connectivity status: connected, and internet
// reachability not known to be false (fail open on unknown).
func (s Sample) Online() bool {
	return s.Connected && (s.InternetReachable == nil || *s.InternetReachable)
}

// Reachability is the platform network-status collaborator.
type Reachability interface {
	// Fetch reads the instantaneous reachability state.
	Fetch(ctx context.Context) (Sample, error)
	// Subscribe registers a callback for reachability changes and returns an
	// unsubscribe function.
	Subscribe(fn func(Sample)) (unsubscribe func())
}

// Listener receives the derived online flag on every reachability change.
type Listener func(online bool)

// Monitor owns exactly one platform subscription for the process lifetime
// and fans out to registered listeners. No other component may subscribe to
// the platform directly.
type Monitor struct {
	reachability Reachability
	unsubscribe  func()

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewMonitor creates a Monitor and opens the single upstream subscription.
func NewMonitor(r Reachability) *Monitor {
	m := &Monitor{
		reachability: r,
		listeners:    make(map[int]Listener),
	}
	m.unsubscribe = r.Subscribe(m.fanOut)
	slog.Debug("ConnectivityMonitor created with upstream subscription")
	return m
}

// Online reads the instantaneous connectivity status.
func (m *Monitor) Online(ctx context.Context) (bool, error) {
	sample, err := m.reachability.Fetch(ctx)
	if err != nil {
		slog.Error("ConnectivityMonitor fetch failed", "error", err)
		return false, fmt.Errorf("failed to fetch reachability: %w", err)
	}
	online := sample.Online()
	slog.Debug("ConnectivityMonitor Online", "online", online, "connected", sample.Connected)
	return online, nil
}

// Subscribe registers a listener for connectivity changes. The returned
// function removes the listener.
func (m *Monitor) Subscribe(listener Listener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	count := len(m.listeners)
	m.mu.Unlock()

	slog.Debug("ConnectivityMonitor listener registered", "listeners", count)
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Close tears down the upstream subscription and drops all listeners.
func (m *Monitor) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Lock()
	m.listeners = make(map[int]Listener)
	m.mu.Unlock()
	slog.Debug("ConnectivityMonitor closed")
}

func (m *Monitor) fanOut(sample Sample) {
	online := sample.Online()

	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	slog.Debug("ConnectivityMonitor fan-out", "online", online, "listeners", len(listeners))
	for _, l := range listeners {
		l(online)
	}
}
