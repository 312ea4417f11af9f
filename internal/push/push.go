// Package push registers the device push token with the backend.
//
// Token issuance and permission prompts belong to the platform messaging
// collaborator; this package owns the register/unregister HTTP contract and
// the cached-token bookkeeping. Everything here is best-effort: push is never
// allowed to block sign-in, sign-out, or startup.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

const (
	// tokenCacheKey stores the last token accepted by the backend.
	tokenCacheKey = "fcm_token"
	// installationKey stores the per-install identifier sent with registrations.
	installationKey = "installation_id"
	// DefaultRequestTimeout bounds register/unregister calls.
	DefaultRequestTimeout = 10 * time.Second
)

// TokenSource is the platform push-messaging collaborator (FCM-shaped).
type TokenSource interface {
	// RequestPermission prompts for notification permission where the
	// platform requires it. Returns whether notifications are permitted.
	RequestPermission(ctx context.Context) (bool, error)
	// Token returns the current device push token.
	Token(ctx context.Context) (string, error)
	// OnTokenRefresh registers a callback for platform token rotation and
	// returns an unsubscribe function.
	OnTokenRefresh(fn func(newToken string)) (unsubscribe func())
}

// Registrar binds device push tokens to the authenticated user via the
// backend push-token endpoint.
type Registrar struct {
	source   TokenSource
	store    store.Store
	client   *http.Client
	endpoint string
	platform string
}

// RegistrarOpts holds configuration options for the Registrar.
type RegistrarOpts struct {
	HTTPClient *http.Client
}

// RegistrarOption defines a configuration option for the Registrar.
type RegistrarOption func(*RegistrarOpts)

// WithHTTPClient sets the HTTP client used for registration calls.
func WithHTTPClient(c *http.Client) RegistrarOption {
	return func(o *RegistrarOpts) {
		o.HTTPClient = c
	}
}

// NewRegistrar creates a Registrar posting to endpoint for the given platform
// ("ios" or "android").
func NewRegistrar(source TokenSource, st store.Store, endpoint, platform string, opts ...RegistrarOption) *Registrar {
	var cfg RegistrarOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	slog.Debug("Creating push Registrar", "endpoint", endpoint, "platform", platform)
	return &Registrar{source: source, store: st, client: client, endpoint: endpoint, platform: platform}
}

// Register requests permission, fetches the device token, and binds it to
// the session. Skipped when the backend already holds this exact token.
// Callers must ensure a session exists and connectivity is online first.
func (r *Registrar) Register(ctx context.Context, accessToken string) error {
	permitted, err := r.source.RequestPermission(ctx)
	if err != nil {
		slog.Warn("Push permission request failed", "error", err)
		return fmt.Errorf("permission request failed: %w", err)
	}
	if !permitted {
		slog.Debug("Push permission not granted, skipping registration")
		return nil
	}

	token, err := r.source.Token(ctx)
	if err != nil {
		slog.Warn("Push token fetch failed", "error", err)
		return fmt.Errorf("token fetch failed: %w", err)
	}
	if token == "" {
		slog.Debug("Push token empty, skipping registration")
		return nil
	}

	cached, ok, _ := r.store.GetItem(tokenCacheKey)
	if ok && cached == token {
		slog.Debug("Push token unchanged, skipping registration")
		return nil
	}

	payload := map[string]string{
		"token":          token,
		"platform":       r.platform,
		"installationId": r.installationID(),
	}
	if err := r.send(ctx, http.MethodPost, accessToken, payload); err != nil {
		slog.Warn("Push token registration failed", "error", err)
		return err
	}

	if err := r.store.SetItem(tokenCacheKey, token); err != nil {
		slog.Warn("Push token cache write failed", "error", err)
	}
	slog.Info("Push token registered", "platform", r.platform)
	return nil
}

// Unregister removes the cached token binding. Called before sign-out
// invalidates the session (the DELETE needs the still-valid access token).
func (r *Registrar) Unregister(ctx context.Context, accessToken string) error {
	token, ok, err := r.store.GetItem(tokenCacheKey)
	if err != nil {
		return fmt.Errorf("failed to read cached token: %w", err)
	}
	if !ok || token == "" {
		slog.Debug("No cached push token, nothing to unregister")
		return nil
	}

	if err := r.send(ctx, http.MethodDelete, accessToken, map[string]string{"token": token}); err != nil {
		slog.Warn("Push token unregistration failed", "error", err)
		return err
	}

	if err := r.store.RemoveItem(tokenCacheKey); err != nil {
		slog.Warn("Push token cache cleanup failed", "error", err)
	}
	slog.Info("Push token unregistered")
	return nil
}

// WatchRefresh re-registers when the platform rotates the token. accessToken
// supplies the current session token at rotation time (empty = skip).
func (r *Registrar) WatchRefresh(ctx context.Context, accessToken func() string) (unsubscribe func()) {
	return r.source.OnTokenRefresh(func(newToken string) {
		token := accessToken()
		if token == "" {
			slog.Debug("Push token rotated with no session, ignoring")
			return
		}

		old, ok, _ := r.store.GetItem(tokenCacheKey)
		if ok && old != "" && old != newToken {
			if err := r.send(ctx, http.MethodDelete, token, map[string]string{"token": old}); err != nil {
				slog.Warn("Stale push token unregistration failed", "error", err)
			}
		}

		if err := r.send(ctx, http.MethodPost, token, map[string]string{
			"token":          newToken,
			"platform":       r.platform,
			"installationId": r.installationID(),
		}); err != nil {
			slog.Warn("Rotated push token registration failed", "error", err)
			return
		}
		if err := r.store.SetItem(tokenCacheKey, newToken); err != nil {
			slog.Warn("Push token cache write failed", "error", err)
		}
		slog.Info("Push token rotation handled")
	})
}

// installationID returns the stable per-install identifier, creating it on
// first use.
func (r *Registrar) installationID() string {
	id, ok, _ := r.store.GetItem(installationKey)
	if ok && id != "" {
		return id
	}
	id = uuid.NewString()
	if err := r.store.SetItem(installationKey, id); err != nil {
		slog.Warn("Installation ID persist failed", "error", err)
	}
	return id
}

func (r *Registrar) send(ctx context.Context, method, accessToken string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("push endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
