// Package auth provides the session store and identity-provider contract.
//
// This file implements the SessionStore, the single owner of the live Session.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// Storage is the persistence contract the session store needs. The secure
// store adapter satisfies it.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// PushUnregisterer removes the push-token binding for a session. Sign-out
// calls it before invalidating the session, because unregistration needs a
// valid access token.
type PushUnregisterer interface {
	Unregister(ctx context.Context, accessToken string) error
}

// SessionStore owns the process's single live Session: sign-in/up/out, token
// refresh propagation, persistence, and change notifications.
type SessionStore struct {
	provider   Provider
	storage    Storage
	push       PushUnregisterer
	storageKey string
	now        func() time.Time

	mu        sync.Mutex
	session   *models.Session
	listeners map[int]func(*models.Session)
	nextID    int
}

// SessionStoreOpts holds configuration options for the session store.
type SessionStoreOpts struct {
	// Push is the optional push-token unregistration collaborator.
	Push PushUnregisterer
	// Now overrides the clock (tests).
	Now func() time.Time
}

// SessionStoreOption defines a configuration option for the session store.
type SessionStoreOption func(*SessionStoreOpts)

// WithPushUnregisterer wires the push-token collaborator into sign-out.
func WithPushUnregisterer(p PushUnregisterer) SessionStoreOption {
	return func(o *SessionStoreOpts) {
		o.Push = p
	}
}

// WithClock overrides the session store's clock.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(o *SessionStoreOpts) {
		o.Now = now
	}
}

// NewSessionStore creates a SessionStore persisting under storageKey
// (conventionally StorageKey(projectRef)).
func NewSessionStore(provider Provider, storage Storage, storageKey string, opts ...SessionStoreOption) *SessionStore {
	var cfg SessionStoreOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	slog.Debug("Creating SessionStore", "storageKey", storageKey, "push_wired", cfg.Push != nil)
	return &SessionStore{
		provider:   provider,
		storage:    storage,
		push:       cfg.Push,
		storageKey: storageKey,
		now:        cfg.Now,
		listeners:  make(map[int]func(*models.Session)),
	}
}

// Current returns the live session, or nil when unauthenticated.
func (s *SessionStore) Current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Subscribe registers a change listener invoked with the new session (or nil)
// whenever it changes, including externally-driven refreshes. The returned
// function removes the listener.
func (s *SessionStore) Subscribe(listener func(*models.Session)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Restore hydrates the session from persisted storage. Called once at
// startup; the state machine must not leave splash before it returns.
// Sessions that are expired with no refresh token are discarded.
func (s *SessionStore) Restore(ctx context.Context) *models.Session {
	raw, ok, err := s.storage.GetItem(s.storageKey)
	if err != nil {
		slog.Error("SessionStore restore read failed", "error", err)
		return nil
	}
	if !ok {
		slog.Debug("SessionStore restore: no persisted session")
		return nil
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		slog.Error("SessionStore restore unmarshal failed, discarding", "error", err)
		if rerr := s.storage.RemoveItem(s.storageKey); rerr != nil {
			slog.Warn("SessionStore restore cleanup failed", "error", rerr)
		}
		return nil
	}
	fillFromClaims(&session)

	if session.Expired(s.now()) && session.RefreshToken == "" {
		slog.Info("SessionStore restore: session expired with no refresh token, discarding")
		if rerr := s.storage.RemoveItem(s.storageKey); rerr != nil {
			slog.Warn("SessionStore restore cleanup failed", "error", rerr)
		}
		return nil
	}

	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()

	slog.Info("SessionStore restored session", "userID", session.User.ID)
	return &session
}

// SignInWithPassword establishes a session from email/password credentials.
func (s *SessionStore) SignInWithPassword(ctx context.Context, email, password string) error {
	if email == "" {
		return models.ErrEmptyEmail
	}
	if password == "" {
		return models.ErrEmptyPassword
	}

	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	s.setSession(session)
	return nil
}

// SignUpWithPassword registers a new account. No session is established
// until the confirmation email is acted on.
func (s *SessionStore) SignUpWithPassword(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	if email == "" {
		return SignUpResult{}, models.ErrEmptyEmail
	}
	if password == "" {
		return SignUpResult{}, models.ErrEmptyPassword
	}
	return s.provider.SignUp(ctx, email, password, fullName)
}

// SignInWithIDToken establishes a session from a federated identity token.
func (s *SessionStore) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) error {
	session, err := s.provider.SignInWithIDToken(ctx, provider, idToken, nonce)
	if err != nil {
		return err
	}
	s.setSession(session)
	return nil
}

// SignInWithOAuthRedirect returns the URL to open in an external browser for
// providers that require a hand-off. Completion arrives via ExchangeOAuthCode.
func (s *SessionStore) SignInWithOAuthRedirect(ctx context.Context, provider, redirectTo string) (string, error) {
	return s.provider.OAuthRedirectURL(ctx, provider, redirectTo)
}

// ExchangeOAuthCode completes a browser hand-off flow from a deep-link
// authorization code.
func (s *SessionStore) ExchangeOAuthCode(ctx context.Context, code string) error {
	session, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	s.setSession(session)
	return nil
}

// ResetPassword triggers a password-reset email.
func (s *SessionStore) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if email == "" {
		return models.ErrEmptyEmail
	}
	return s.provider.ResetPassword(ctx, email, redirectTo)
}

// ApplyRefreshed installs an externally-refreshed session. The change
// notification drives bridge re-injection.
func (s *SessionStore) ApplyRefreshed(session *models.Session) {
	if session == nil {
		return
	}
	slog.Debug("SessionStore applying refreshed session")
	s.setSession(session)
}

// SignOut clears the session unconditionally. The push token is unregistered
// first (it needs the still-valid access token) and the provider sign-out is
// best-effort; local state is cleared and subscribers notified even when
// either step fails.
func (s *SessionStore) SignOut(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session != nil {
		if s.push != nil {
			if err := s.push.Unregister(ctx, session.AccessToken); err != nil {
				slog.Warn("SessionStore push unregistration failed, continuing sign-out", "error", err)
			}
		}
		if err := s.provider.SignOut(ctx, session.AccessToken); err != nil {
			slog.Warn("SessionStore provider sign-out failed, clearing locally", "error", err)
		}
	}

	if err := s.storage.RemoveItem(s.storageKey); err != nil {
		slog.Error("SessionStore failed to remove persisted session", "error", err)
	}

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.notify(nil)

	slog.Info("SessionStore signed out")
}

// setSession persists the session and notifies subscribers.
func (s *SessionStore) setSession(session *models.Session) {
	raw, err := json.Marshal(session)
	if err != nil {
		slog.Error("SessionStore failed to encode session for persistence", "error", err)
	} else if err := s.storage.SetItem(s.storageKey, string(raw)); err != nil {
		slog.Error("SessionStore failed to persist session", "error", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.notify(session)

	slog.Info("SessionStore session updated", "userID", session.User.ID)
}

func (s *SessionStore) notify(session *models.Session) {
	s.mu.Lock()
	listeners := make([]func(*models.Session), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}
