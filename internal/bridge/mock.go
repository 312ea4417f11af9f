package bridge

import (
	"context"
	"sync"
)

// MockSurface is a scriptable Surface for tests. Injected scripts and loaded
// URLs are recorded; Push feeds content -> shell payloads.
type MockSurface struct {
	mu sync.Mutex

	// InjectErr is returned by InjectScript when set.
	InjectErr error

	Injected    []string
	LoadedURLs  []string
	BackCalls   int
	ReloadCalls int

	messages chan []byte
	stopped  bool
}

// NewMockSurface creates a MockSurface with a buffered message stream.
func NewMockSurface() *MockSurface {
	return &MockSurface{messages: make(chan []byte, 16)}
}

func (m *MockSurface) Start(ctx context.Context) error { return nil }

func (m *MockSurface) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.messages)
	}
	return nil
}

func (m *MockSurface) LoadURL(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadedURLs = append(m.LoadedURLs, url)
	return nil
}

func (m *MockSurface) InjectScript(ctx context.Context, js string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InjectErr != nil {
		return m.InjectErr
	}
	m.Injected = append(m.Injected, js)
	return nil
}

func (m *MockSurface) GoBack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BackCalls++
	return nil
}

func (m *MockSurface) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReloadCalls++
	return nil
}

func (m *MockSurface) Messages() <-chan []byte {
	return m.messages
}

// Push delivers a raw content -> shell payload.
func (m *MockSurface) Push(raw []byte) {
	m.messages <- raw
}

// Loaded returns a copy of every loaded URL.
func (m *MockSurface) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.LoadedURLs))
	copy(out, m.LoadedURLs)
	return out
}

// InjectedScripts returns a copy of every injected script.
func (m *MockSurface) InjectedScripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Injected))
	copy(out, m.Injected)
	return out
}
