package auth

import (
	"context"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// MockProvider is a scriptable Provider for tests.
type MockProvider struct {
	mu sync.Mutex

	// Session is returned by the sign-in and exchange operations when Err is nil.
	Session *models.Session
	// Err is returned by every operation when set.
	Err error
	// SignUpNeedsConfirmation scripts the SignUp result.
	SignUpNeedsConfirmation bool
	// RedirectURL is returned by OAuthRedirectURL.
	RedirectURL string
	// SignOutErr is returned by SignOut independently of Err.
	SignOutErr error

	// Call counters for assertions.
	SignOutCalls      int
	ExchangeCodeCalls int
	RefreshCalls      int
}

// NewMockProvider creates a MockProvider issuing a basic test session.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Session: &models.Session{
			AccessToken:  "access-token-1",
			RefreshToken: "refresh-token-1",
			TokenType:    "bearer",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         models.UserProfile{ID: "user-1", Email: "user@example.com"},
		},
		RedirectURL: "https://auth.example.com/authorize?provider=github",
	}
}

func (p *MockProvider) sessionCopy() *models.Session {
	if p.Session == nil {
		return nil
	}
	s := *p.Session
	return &s
}

func (p *MockProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.sessionCopy(), nil
}

func (p *MockProvider) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return SignUpResult{}, p.Err
	}
	return SignUpResult{NeedsEmailConfirmation: p.SignUpNeedsConfirmation}, nil
}

func (p *MockProvider) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.sessionCopy(), nil
}

func (p *MockProvider) OAuthRedirectURL(ctx context.Context, provider, redirectTo string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.RedirectURL, nil
}

func (p *MockProvider) ExchangeCode(ctx context.Context, code string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExchangeCodeCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	return p.sessionCopy(), nil
}

func (p *MockProvider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RefreshCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	return p.sessionCopy(), nil
}

func (p *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SignOutCalls++
	if p.SignOutErr != nil {
		return p.SignOutErr
	}
	return p.Err
}

func (p *MockProvider) ResetPassword(ctx context.Context, email, redirectTo string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Err
}
