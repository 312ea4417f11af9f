package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// TokenClaims are the access-token claims the shell cares about. The token is
// parsed without signature verification: the shell is not the token's
// audience and only needs the provider-asserted expiry and identity.
type TokenClaims struct {
	ExpiresAt time.Time
	Subject   string
	Email     string
}

// ParseAccessToken extracts claims from a JWT access token.
func ParseAccessToken(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	var out TokenClaims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	return out, nil
}

// fillFromClaims completes a session with claim-derived fields the provider
// response omitted.
func fillFromClaims(session *models.Session) {
	claims, err := ParseAccessToken(session.AccessToken)
	if err != nil {
		return
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = claims.ExpiresAt
	}
	if session.User.ID == "" {
		session.User.ID = claims.Subject
	}
	if session.User.Email == "" {
		session.User.Email = claims.Email
	}
}
