package push

import "context"

// StaticTokenSource is a TokenSource with a fixed, pre-provisioned device
// token. Hosts without a platform messaging SDK supply the token out of
// band; permission is implicitly granted and the token never rotates.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource around a fixed token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// RequestPermission always grants permission.
func (s *StaticTokenSource) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// Token returns the configured token.
func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	return s.token, nil
}

// OnTokenRefresh never fires; the unsubscribe function is a no-op.
func (s *StaticTokenSource) OnTokenRefresh(fn func(token string)) (unsubscribe func()) {
	return func() {}
}
