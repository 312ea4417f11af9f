package connectivity

import (
	"context"
	"sync"
)

// MockReachability is a scriptable Reachability for tests and for running the
// daemon without a platform network-status provider.
type MockReachability struct {
	mu        sync.Mutex
	sample    Sample
	err       error
	listeners map[int]func(Sample)
	nextID    int
	// SubscribeCount tracks how many upstream subscriptions were opened.
	SubscribeCount int
}

// NewMockReachability creates a MockReachability reporting the given state.
func NewMockReachability(online bool) *MockReachability {
	return &MockReachability{
		sample:    Sample{Connected: online, InternetReachable: &online},
		listeners: make(map[int]func(Sample)),
	}
}

// Fetch returns the scripted sample.
func (r *MockReachability) Fetch(ctx context.Context) (Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sample, r.err
}

// Subscribe registers an upstream callback.
func (r *MockReachability) Subscribe(fn func(Sample)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = fn
	r.SubscribeCount++
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// SetOnline flips the scripted state and notifies subscribers.
func (r *MockReachability) SetOnline(online bool) {
	r.Emit(Sample{Connected: online, InternetReachable: &online})
}

// SetErr makes Fetch return err.
func (r *MockReachability) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Emit pushes an arbitrary sample to subscribers.
func (r *MockReachability) Emit(sample Sample) {
	r.mu.Lock()
	r.sample = sample
	fns := make([]func(Sample), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(sample)
	}
}
