package bridge

import (
	"sync"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// Mirror is the shell's thread-safe view of the content surface's navigation
// state, fed by page_meta, theme, and notification_count messages.
type Mirror struct {
	mu    sync.Mutex
	state models.NavigationMirror
}

// NewMirror creates an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{}
}

// Snapshot returns the current mirrored state.
func (m *Mirror) Snapshot() models.NavigationMirror {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetPageMeta records the content's logical location.
func (m *Mirror) SetPageMeta(title, path string, canGoBack bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Title = title
	m.state.Path = path
	m.state.CanGoBack = canGoBack
}

// SetTheme records the content's theme mode.
func (m *Mirror) SetTheme(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Theme = mode
}

// SetNotificationCount records the unread badge count.
func (m *Mirror) SetNotificationCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.NotificationCount = count
}

// CanGoBack reports whether the content can navigate backward; the hardware
// back handler consults it.
func (m *Mirror) CanGoBack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CanGoBack
}

// Reset clears the mirror, used when the surface reloads.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = models.NavigationMirror{}
}
