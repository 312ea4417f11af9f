package securestore

import (
	"context"
	"testing"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

func TestSecureStoreKeychainFirst(t *testing.T) {
	kc := NewMemKeychain()
	fallback := store.NewInMemoryStore()
	s := New(kc, fallback, "ai.kodiq.auth")

	if err := s.SetItem("sb-test-auth-token", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := s.GetItem("sb-test-auth-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "secret" {
		t.Errorf("expected secret, got %q (present=%v)", v, ok)
	}

	// Value must not land in the plaintext fallback when the keychain works.
	if _, ok, _ := fallback.GetItem("sb-test-auth-token"); ok {
		t.Error("value leaked into plaintext fallback")
	}
}

func TestSecureStoreFallbackWhenKeychainUnavailable(t *testing.T) {
	kc := NewMemKeychain()
	kc.Unavailable = true
	fallback := store.NewInMemoryStore()
	s := New(kc, fallback, "ai.kodiq.auth")

	if err := s.SetItem("k", "v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := s.GetItem("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "v" {
		t.Errorf("expected fallback value, got %q (present=%v)", v, ok)
	}
}

func TestSecureStoreMigratesPlaintext(t *testing.T) {
	kc := NewMemKeychain()
	fallback := store.NewInMemoryStore()
	// Simulate a pre-upgrade install with a plaintext token.
	fallback.SetItem("sb-test-auth-token", "legacy")

	s := New(kc, fallback, "ai.kodiq.auth")

	v, ok, err := s.GetItem("sb-test-auth-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "legacy" {
		t.Fatalf("expected legacy value, got %q (present=%v)", v, ok)
	}

	// Migration: keychain holds the value, plaintext copy is gone.
	if !kc.Has("ai.kodiq.auth.sb-test-auth-token") {
		t.Error("value not migrated into keychain")
	}
	if _, ok, _ := fallback.GetItem("sb-test-auth-token"); ok {
		t.Error("plaintext value not cleaned up after migration")
	}
}

func TestSecureStoreMigrationKeepsPlaintextOnKeychainError(t *testing.T) {
	kc := NewMemKeychain()
	kc.Unavailable = true
	fallback := store.NewInMemoryStore()
	fallback.SetItem("k", "legacy")

	s := New(kc, fallback, "ai.kodiq.auth")

	v, ok, err := s.GetItem("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "legacy" {
		t.Fatalf("expected legacy value, got %q", v)
	}

	// Write-then-delete ordering: the keychain write failed, so the
	// plaintext copy must survive.
	if _, ok, _ := fallback.GetItem("k"); !ok {
		t.Error("plaintext value deleted even though keychain write failed")
	}
}

func TestSecureStoreRemoveClearsBothTiers(t *testing.T) {
	kc := NewMemKeychain()
	fallback := store.NewInMemoryStore()
	fallback.SetItem("k", "plain")
	kc.Set("ai.kodiq.auth.k", "secure", AccessAfterFirstUnlock)

	s := New(kc, fallback, "ai.kodiq.auth")
	if err := s.RemoveItem("k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kc.Has("ai.kodiq.auth.k") {
		t.Error("keychain entry survived RemoveItem")
	}
	if _, ok, _ := fallback.GetItem("k"); ok {
		t.Error("fallback entry survived RemoveItem")
	}
}

func TestFileKeychainRoundTrip(t *testing.T) {
	backing := store.NewInMemoryStore()
	kc, err := NewFileKeychain(backing, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file keychain: %v", err)
	}

	if err := kc.Set("ai.kodiq.auth.token", "sealed-value", AccessAfterFirstUnlock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := kc.Get("ai.kodiq.auth.token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "sealed-value" {
		t.Errorf("expected sealed-value, got %q (present=%v)", v, ok)
	}

	// The backing store must never see the plaintext.
	raw, ok, _ := backing.GetItem("securestore:ai.kodiq.auth.token")
	if !ok {
		t.Fatal("sealed entry missing from backing store")
	}
	if raw == "sealed-value" {
		t.Error("entry stored in plaintext")
	}
}

func TestFileKeychainBiometryGating(t *testing.T) {
	backing := store.NewInMemoryStore()

	// Without an authorizer biometry-gated entries cannot be provisioned.
	kc, err := NewFileKeychain(backing, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file keychain: %v", err)
	}
	if err := kc.Set("svc", "v", AccessBiometryAny); err == nil {
		t.Error("expected provisioning to fail without authorizer")
	}

	approve := true
	kc, err = NewFileKeychain(backing, t.TempDir(), WithAuthorizer(
		func(ctx context.Context, prompt Prompt) (bool, error) {
			return approve, nil
		}))
	if err != nil {
		t.Fatalf("failed to create file keychain: %v", err)
	}

	if err := kc.Set("svc", "v", AccessBiometryAny); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Direct reads of gated entries fail closed.
	if _, _, err := kc.Get("svc"); err == nil {
		t.Error("expected direct read of gated entry to fail")
	}

	v, ok, err := kc.Challenge(context.Background(), "svc", Prompt{Title: "Unlock"})
	if err != nil || !ok || v != "v" {
		t.Errorf("expected successful challenge, got %q ok=%v err=%v", v, ok, err)
	}

	approve = false
	_, ok, err = kc.Challenge(context.Background(), "svc", Prompt{Title: "Unlock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("challenge succeeded despite denial")
	}
}
