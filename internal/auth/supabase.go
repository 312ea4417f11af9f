// Package auth provides the session store and identity-provider contract.
//
// This file implements the Supabase (GoTrue) HTTP provider.
package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/util"
)

// DefaultRequestTimeout bounds every provider HTTP call.
const DefaultRequestTimeout = 10 * time.Second

// SupabaseProvider implements Provider against the Supabase auth API.
type SupabaseProvider struct {
	baseURL string
	anonKey string
	client  *http.Client

	mu sync.Mutex
	// codeVerifier is the PKCE verifier for the in-flight browser hand-off.
	codeVerifier string
}

// SupabaseOpts holds configuration options for the Supabase provider.
type SupabaseOpts struct {
	// HTTPClient overrides the default client (tests point it at a fake server).
	HTTPClient *http.Client
}

// SupabaseOption defines a configuration option for the Supabase provider.
type SupabaseOption func(*SupabaseOpts)

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) SupabaseOption {
	return func(o *SupabaseOpts) {
		o.HTTPClient = c
	}
}

// NewSupabaseProvider creates a provider for the given project URL and anon key.
func NewSupabaseProvider(baseURL, anonKey string, opts ...SupabaseOption) *SupabaseProvider {
	var cfg SupabaseOpts
	for _, opt := range opts {
		opt(&cfg)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	slog.Debug("Creating SupabaseProvider", "baseURL_set", baseURL != "")
	return &SupabaseProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

// ProjectRef extracts the Supabase project ref from the base URL host
// (https://{ref}.supabase.co). Used to build the content storage key.
func ProjectRef(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	host, _, _ := strings.Cut(u.Hostname(), ".")
	return host
}

// StorageKey is the provider-compatible persistence key for a project ref.
func StorageKey(projectRef string) string {
	return "sb-" + projectRef + "-auth-token"
}

// tokenResponse is the GoTrue token endpoint response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName string `json:"full_name"`
		} `json:"user_metadata"`
	} `json:"user"`
}

func (r *tokenResponse) session(now time.Time) *models.Session {
	s := &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User: models.UserProfile{
			ID:       r.User.ID,
			Email:    r.User.Email,
			FullName: r.User.UserMetadata.FullName,
		},
	}
	if r.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	fillFromClaims(s)
	return s
}

// errorResponse is the GoTrue error body shape.
type errorResponse struct {
	ErrorCode   string `json:"error_code"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
	Description string `json:"error_description"`
}

// SignInWithPassword exchanges email/password for a session.
func (p *SupabaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		slog.Error("SupabaseProvider SignInWithPassword failed", "error", err)
		return nil, err
	}
	slog.Info("SupabaseProvider SignInWithPassword succeeded", "userID", resp.User.ID)
	return resp.session(time.Now()), nil
}

// SignUp registers a new account. The server sends a confirmation email.
func (p *SupabaseProvider) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"full_name": fullName,
			"source":    "academy-mobile",
		},
	}
	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/signup", "", body, &resp); err != nil {
		slog.Error("SupabaseProvider SignUp failed", "error", err)
		return SignUpResult{}, err
	}
	// With email confirmation enabled GoTrue returns no access token here.
	slog.Info("SupabaseProvider SignUp succeeded", "needsConfirmation", resp.AccessToken == "")
	return SignUpResult{NeedsEmailConfirmation: resp.AccessToken == ""}, nil
}

// SignInWithIDToken exchanges a federated identity token for a session.
func (p *SupabaseProvider) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*models.Session, error) {
	body := map[string]string{"provider": provider, "id_token": idToken}
	if nonce != "" {
		body["nonce"] = nonce
	}
	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=id_token", "", body, &resp); err != nil {
		slog.Error("SupabaseProvider SignInWithIDToken failed", "error", err, "provider", provider)
		return nil, err
	}
	slog.Info("SupabaseProvider SignInWithIDToken succeeded", "provider", provider)
	return resp.session(time.Now()), nil
}

// OAuthRedirectURL builds the browser hand-off URL for the given provider.
// Each call starts a fresh PKCE exchange: the verifier is held until the
// matching callback code arrives.
func (p *SupabaseProvider) OAuthRedirectURL(ctx context.Context, provider, redirectTo string) (string, error) {
	verifier := util.GenerateNonce(64)
	challenge := sha256.Sum256([]byte(verifier))

	p.mu.Lock()
	p.codeVerifier = verifier
	p.mu.Unlock()

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(challenge[:]))
	q.Set("code_challenge_method", "s256")
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return p.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// ExchangeCode exchanges an OAuth callback authorization code for a session.
func (p *SupabaseProvider) ExchangeCode(ctx context.Context, code string) (*models.Session, error) {
	p.mu.Lock()
	verifier := p.codeVerifier
	p.codeVerifier = ""
	p.mu.Unlock()

	body := map[string]string{"auth_code": code}
	if verifier != "" {
		body["code_verifier"] = verifier
	}
	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=pkce", "", body, &resp); err != nil {
		slog.Error("SupabaseProvider ExchangeCode failed", "error", err)
		return nil, err
	}
	slog.Info("SupabaseProvider ExchangeCode succeeded", "userID", resp.User.ID)
	return resp.session(time.Now()), nil
}

// RefreshSession exchanges a refresh token for a fresh session.
func (p *SupabaseProvider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); err != nil {
		slog.Error("SupabaseProvider RefreshSession failed", "error", err)
		return nil, err
	}
	slog.Debug("SupabaseProvider RefreshSession succeeded")
	return resp.session(time.Now()), nil
}

// SignOut invalidates the session server-side.
func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.post(ctx, "/auth/v1/logout", accessToken, struct{}{}, nil); err != nil {
		slog.Error("SupabaseProvider SignOut failed", "error", err)
		return err
	}
	slog.Debug("SupabaseProvider SignOut succeeded")
	return nil
}

// ResetPassword triggers a password-reset email.
func (p *SupabaseProvider) ResetPassword(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email}
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	if err := p.post(ctx, path, "", body, nil); err != nil {
		slog.Error("SupabaseProvider ResetPassword failed", "error", err)
		return err
	}
	slog.Info("SupabaseProvider ResetPassword succeeded")
	return nil
}

// post performs an authenticated JSON POST against the auth API. A non-2xx
// response with a provider error body becomes an *AuthError.
func (p *SupabaseProvider) post(ctx context.Context, path, accessToken string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.anonKey)
	bearer := p.anonKey
	if accessToken != "" {
		bearer = accessToken
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		message := fmt.Sprintf("auth request failed with status %d", resp.StatusCode)
		if json.Unmarshal(raw, &apiErr) == nil {
			if apiErr.Msg != "" {
				message = apiErr.Msg
			} else if apiErr.Message != "" {
				message = apiErr.Message
			} else if apiErr.Description != "" {
				message = apiErr.Description
			}
		}
		return &AuthError{Message: message, Code: apiErr.ErrorCode}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode auth response: %w", err)
		}
	}
	return nil
}
