// Package widget updates the home-screen streak widget.
package widget

import (
	"context"
	"log/slog"
	"sync"
)

// Updater pushes streak state to the platform widget collaborator.
type Updater interface {
	// UpdateStreak replaces the widget's streak display.
	UpdateStreak(ctx context.Context, streak int, challengeDone bool) error
}

// NoopUpdater is used on platforms without a widget surface.
type NoopUpdater struct{}

func (NoopUpdater) UpdateStreak(ctx context.Context, streak int, challengeDone bool) error {
	slog.Debug("Widget update skipped, no widget surface", "streak", streak)
	return nil
}

// MockUpdater records streak updates for tests.
type MockUpdater struct {
	mu sync.Mutex

	// Err is returned by UpdateStreak when set.
	Err error

	// Calls holds every received update in order.
	Calls []StreakUpdate
}

// StreakUpdate is one recorded UpdateStreak call.
type StreakUpdate struct {
	Streak        int
	ChallengeDone bool
}

func (m *MockUpdater) UpdateStreak(ctx context.Context, streak int, challengeDone bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, StreakUpdate{Streak: streak, ChallengeDone: challengeDone})
	return m.Err
}

// CallCount returns the number of recorded updates.
func (m *MockUpdater) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
