// Package auth provides the session store and the identity-provider
// collaborator contract for the Academy Shell.
//
// The provider owns credential verification and token issuance; the session
// store owns the single live Session, its persistence, and change
// notifications.
package auth

import (
	"context"
	"errors"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// AuthError is a provider failure carrying a user-presentable message.
// It is surfaced inline on the originating auth screen, never as a crash.
type AuthError struct {
	// Message is safe to show to the user.
	Message string
	// Code is the provider's machine-readable error code, when known.
	Code string
}

func (e *AuthError) Error() string {
	return e.Message
}

// AsAuthError unwraps err into an *AuthError when possible.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// SignUpResult reports the outcome of a sign-up request. No session is
// established until the confirmation email is acted on.
type SignUpResult struct {
	NeedsEmailConfirmation bool
}

// Provider is the identity-provider collaborator. Implementations verify
// credentials and issue sessions; they report failures as *AuthError for
// rejected credentials and plain errors for transport problems.
type Provider interface {
	// SignInWithPassword exchanges email/password credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)

	// SignUp registers a new account and triggers a confirmation email.
	SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error)

	// SignInWithIDToken exchanges a federated identity token (Google/Apple)
	// produced out-of-band by a native SDK.
	SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*models.Session, error)

	// OAuthRedirectURL starts a browser hand-off flow (e.g. GitHub) and
	// returns the URL the caller must open externally. Completion arrives
	// later as a deep-link authorization code.
	OAuthRedirectURL(ctx context.Context, provider, redirectTo string) (string, error)

	// ExchangeCode exchanges an OAuth callback authorization code for a session.
	ExchangeCode(ctx context.Context, code string) (*models.Session, error)

	// RefreshSession exchanges a refresh token for a fresh session.
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)

	// SignOut invalidates the session server-side. Requires a valid access token.
	SignOut(ctx context.Context, accessToken string) error

	// ResetPassword triggers a password-reset email.
	ResetPassword(ctx context.Context, email, redirectTo string) error
}
