package push

import (
	"context"
	"sync"
)

// MockTokenSource is a scriptable TokenSource for tests.
type MockTokenSource struct {
	mu sync.Mutex

	// Permitted scripts the permission prompt result.
	Permitted bool
	// PermissionErr is returned by RequestPermission when set.
	PermissionErr error
	// DeviceToken is returned by Token.
	DeviceToken string
	// TokenErr is returned by Token when set.
	TokenErr error

	// PermissionCalls counts RequestPermission invocations.
	PermissionCalls int

	refresh func(string)
}

// NewMockTokenSource creates a MockTokenSource with permission granted and a
// stable test token.
func NewMockTokenSource() *MockTokenSource {
	return &MockTokenSource{Permitted: true, DeviceToken: "device-token-1"}
}

func (m *MockTokenSource) RequestPermission(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PermissionCalls++
	if m.PermissionErr != nil {
		return false, m.PermissionErr
	}
	return m.Permitted, nil
}

func (m *MockTokenSource) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TokenErr != nil {
		return "", m.TokenErr
	}
	return m.DeviceToken, nil
}

func (m *MockTokenSource) OnTokenRefresh(fn func(string)) func() {
	m.mu.Lock()
	m.refresh = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.refresh = nil
		m.mu.Unlock()
	}
}

// Rotate simulates a platform token rotation.
func (m *MockTokenSource) Rotate(newToken string) {
	m.mu.Lock()
	m.DeviceToken = newToken
	fn := m.refresh
	m.mu.Unlock()
	if fn != nil {
		fn(newToken)
	}
}
