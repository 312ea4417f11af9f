package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/store"
)

const testStorageKey = "sb-test-auth-token"

type failingUnregisterer struct {
	calls  int
	tokens []string
	err    error
}

func (f *failingUnregisterer) Unregister(ctx context.Context, accessToken string) error {
	f.calls++
	f.tokens = append(f.tokens, accessToken)
	return f.err
}

func TestSignInWithPasswordEstablishesSession(t *testing.T) {
	provider := NewMockProvider()
	storage := store.NewInMemoryStore()
	s := NewSessionStore(provider, storage, testStorageKey)

	var notified []*models.Session
	unsub := s.Subscribe(func(sess *models.Session) { notified = append(notified, sess) })
	defer unsub()

	if err := s.SignInWithPassword(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Current() == nil {
		t.Fatal("expected a live session")
	}
	if len(notified) != 1 || notified[0] == nil {
		t.Errorf("expected one non-nil notification, got %v", notified)
	}

	// Session must be persisted under the provider storage key.
	raw, ok, _ := storage.GetItem(testStorageKey)
	if !ok {
		t.Fatal("session not persisted")
	}
	var persisted models.Session
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted session not valid JSON: %v", err)
	}
	if persisted.AccessToken != "access-token-1" {
		t.Errorf("persisted access token = %q", persisted.AccessToken)
	}
}

func TestSignInWithPasswordValidatesInput(t *testing.T) {
	s := NewSessionStore(NewMockProvider(), store.NewInMemoryStore(), testStorageKey)

	if err := s.SignInWithPassword(context.Background(), "", "pw"); !errors.Is(err, models.ErrEmptyEmail) {
		t.Errorf("expected ErrEmptyEmail, got %v", err)
	}
	if err := s.SignInWithPassword(context.Background(), "a@b.c", ""); !errors.Is(err, models.ErrEmptyPassword) {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
	if s.Current() != nil {
		t.Error("session established despite invalid input")
	}
}

func TestSignInErrorLeavesSessionNil(t *testing.T) {
	provider := NewMockProvider()
	provider.Err = &AuthError{Message: "Invalid login credentials"}
	s := NewSessionStore(provider, store.NewInMemoryStore(), testStorageKey)

	err := s.SignInWithPassword(context.Background(), "user@example.com", "wrong")
	ae, ok := AsAuthError(err)
	if !ok || ae.Message != "Invalid login credentials" {
		t.Errorf("expected AuthError, got %v", err)
	}
	if s.Current() != nil {
		t.Error("session established despite provider error")
	}
}

func TestSignUpNoSessionUntilConfirmation(t *testing.T) {
	provider := NewMockProvider()
	provider.SignUpNeedsConfirmation = true
	s := NewSessionStore(provider, store.NewInMemoryStore(), testStorageKey)

	result, err := s.SignUpWithPassword(context.Background(), "new@example.com", "pw", "New User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NeedsEmailConfirmation {
		t.Error("expected needs-confirmation result")
	}
	if s.Current() != nil {
		t.Error("session established before email confirmation")
	}
}

func TestSignOutAlwaysClearsSession(t *testing.T) {
	provider := NewMockProvider()
	provider.SignOutErr = errors.New("server unreachable")
	storage := store.NewInMemoryStore()
	push := &failingUnregisterer{err: errors.New("push backend down")}
	s := NewSessionStore(provider, storage, testStorageKey, WithPushUnregisterer(push))

	if err := s.SignInWithPassword(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var notified []*models.Session
	unsub := s.Subscribe(func(sess *models.Session) { notified = append(notified, sess) })
	defer unsub()

	s.SignOut(context.Background())

	if s.Current() != nil {
		t.Error("session survived sign-out despite failing collaborators")
	}
	if _, ok, _ := storage.GetItem(testStorageKey); ok {
		t.Error("persisted session survived sign-out")
	}
	if len(notified) != 1 || notified[0] != nil {
		t.Errorf("expected one nil notification, got %v", notified)
	}
}

func TestSignOutUnregistersPushBeforeInvalidating(t *testing.T) {
	provider := NewMockProvider()
	push := &failingUnregisterer{}
	s := NewSessionStore(provider, store.NewInMemoryStore(), testStorageKey, WithPushUnregisterer(push))

	if err := s.SignInWithPassword(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.SignOut(context.Background())

	if push.calls != 1 {
		t.Fatalf("expected 1 unregister call, got %d", push.calls)
	}
	// Unregistration must receive the still-valid access token.
	if push.tokens[0] != "access-token-1" {
		t.Errorf("unregister called with token %q", push.tokens[0])
	}
	if provider.SignOutCalls != 1 {
		t.Errorf("expected 1 provider sign-out, got %d", provider.SignOutCalls)
	}
}

func TestRestorePersistedSession(t *testing.T) {
	storage := store.NewInMemoryStore()
	session := models.Session{
		AccessToken:  "persisted-token",
		RefreshToken: "persisted-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.UserProfile{ID: "user-9"},
	}
	raw, _ := json.Marshal(session)
	storage.SetItem(testStorageKey, string(raw))

	s := NewSessionStore(NewMockProvider(), storage, testStorageKey)
	restored := s.Restore(context.Background())
	if restored == nil || restored.User.ID != "user-9" {
		t.Fatalf("expected restored session, got %+v", restored)
	}
	if s.Current() == nil {
		t.Error("restored session not held as current")
	}
}

func TestRestoreDiscardsExpiredRefreshlessSession(t *testing.T) {
	storage := store.NewInMemoryStore()
	session := models.Session{
		AccessToken: "stale-token",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	raw, _ := json.Marshal(session)
	storage.SetItem(testStorageKey, string(raw))

	s := NewSessionStore(NewMockProvider(), storage, testStorageKey)
	if restored := s.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil, got %+v", restored)
	}
	if _, ok, _ := storage.GetItem(testStorageKey); ok {
		t.Error("stale session not removed from storage")
	}
}

func TestRestoreKeepsExpiredSessionWithRefreshToken(t *testing.T) {
	storage := store.NewInMemoryStore()
	session := models.Session{
		AccessToken:  "stale-token",
		RefreshToken: "still-good",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	raw, _ := json.Marshal(session)
	storage.SetItem(testStorageKey, string(raw))

	s := NewSessionStore(NewMockProvider(), storage, testStorageKey)
	if restored := s.Restore(context.Background()); restored == nil {
		t.Error("expected session with refresh token to be restored")
	}
}

func TestRestoreDiscardsCorruptPayload(t *testing.T) {
	storage := store.NewInMemoryStore()
	storage.SetItem(testStorageKey, "{not json")

	s := NewSessionStore(NewMockProvider(), storage, testStorageKey)
	if restored := s.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil for corrupt payload, got %+v", restored)
	}
}

func TestApplyRefreshedNotifiesSubscribers(t *testing.T) {
	storage := store.NewInMemoryStore()
	s := NewSessionStore(NewMockProvider(), storage, testStorageKey)

	var notified []*models.Session
	unsub := s.Subscribe(func(sess *models.Session) { notified = append(notified, sess) })
	defer unsub()

	refreshed := &models.Session{
		AccessToken:  "access-token-2",
		RefreshToken: "refresh-token-2",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.UserProfile{ID: "user-1"},
	}
	s.ApplyRefreshed(refreshed)

	if len(notified) != 1 || notified[0].AccessToken != "access-token-2" {
		t.Errorf("expected refreshed session notification, got %v", notified)
	}
	if raw, ok, _ := storage.GetItem(testStorageKey); !ok || raw == "" {
		t.Error("refreshed session not persisted")
	}
}
