// Package securestore provides the secure credential storage adapter for the
// Academy Shell.
//
// Session tokens are held in a platform keychain when one is available, with
// a transparent fallback to the plain key-value store. A best-effort
// migration moves plaintext values into the keychain on first read after an
// upgrade: the keychain copy is written before the plaintext copy is deleted,
// so a crash mid-migration leaves at least one store holding a valid value.
package securestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

// AccessControl selects the access policy for a keychain entry.
type AccessControl string

const (
	// AccessAfterFirstUnlock makes the entry readable once the device has been
	// unlocked since boot.
	AccessAfterFirstUnlock AccessControl = "after-first-unlock"
	// AccessBiometryAny gates reads behind the platform's strong
	// authentication prompt.
	AccessBiometryAny AccessControl = "biometry-any"
)

// Prompt describes the strong-authentication prompt shown for
// biometry-gated reads.
type Prompt struct {
	Title    string
	Subtitle string
	Cancel   string
}

// Keychain is the platform secure-enclave collaborator.
type Keychain interface {
	// Get reads the entry for service. A missing entry is (_, false, nil).
	Get(service string) (string, bool, error)
	// Set writes the entry for service under the given access policy.
	Set(service, value string, access AccessControl) error
	// Delete removes the entry for service. Missing entries are not an error.
	Delete(service string) error
	// BiometryAvailable probes whether biometry-gated entries can be provisioned.
	BiometryAvailable() bool
	// Challenge presents the strong-authentication prompt and, on a verified
	// success, returns the entry for service. Cancellation or failed
	// verification returns (_, false, nil); platform errors return an error.
	Challenge(ctx context.Context, service string, prompt Prompt) (string, bool, error)
}

// SecureStore layers a Keychain over a plain store.Store fallback.
type SecureStore struct {
	keychain    Keychain
	fallback    store.Store
	serviceBase string
}

// New creates a SecureStore. serviceBase namespaces keychain service names,
// e.g. "ai.kodiq.auth".
func New(keychain Keychain, fallback store.Store, serviceBase string) *SecureStore {
	slog.Debug("Creating SecureStore", "serviceBase", serviceBase)
	return &SecureStore{keychain: keychain, fallback: fallback, serviceBase: serviceBase}
}

// GetItem reads key, preferring the keychain. A plaintext value found in the
// fallback store is migrated into the keychain (write first, delete after).
func (s *SecureStore) GetItem(key string) (string, bool, error) {
	value, ok, err := s.keychain.Get(s.service(key))
	if err != nil {
		slog.Debug("SecureStore keychain read failed, trying fallback", "error", err, "key", key)
	} else if ok {
		return value, true, nil
	}

	value, ok, err = s.fallback.GetItem(key)
	if err != nil {
		slog.Error("SecureStore fallback read failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}

	// Migrate the plaintext value into the keychain. Write-then-delete: if
	// either step fails the value survives in at least one store.
	if err := s.keychain.Set(s.service(key), value, AccessAfterFirstUnlock); err != nil {
		slog.Debug("SecureStore migration write failed, keeping plaintext", "error", err, "key", key)
		return value, true, nil
	}
	if err := s.fallback.RemoveItem(key); err != nil {
		slog.Warn("SecureStore migration cleanup failed", "error", err, "key", key)
	} else {
		slog.Info("SecureStore migrated plaintext value into keychain", "key", key)
	}
	return value, true, nil
}

// SetItem writes key to the keychain, falling back to the plain store when
// the keychain is unavailable.
func (s *SecureStore) SetItem(key, value string) error {
	if err := s.keychain.Set(s.service(key), value, AccessAfterFirstUnlock); err != nil {
		slog.Debug("SecureStore keychain write failed, using fallback", "error", err, "key", key)
		if ferr := s.fallback.SetItem(key, value); ferr != nil {
			slog.Error("SecureStore fallback write failed", "error", ferr, "key", key)
			return fmt.Errorf("failed to store %s: %w", key, ferr)
		}
		return nil
	}

	// Remove any plaintext remnant from a pre-migration install.
	if err := s.fallback.RemoveItem(key); err != nil {
		slog.Debug("SecureStore plaintext cleanup failed", "error", err, "key", key)
	}
	return nil
}

// RemoveItem deletes key from both tiers unconditionally.
func (s *SecureStore) RemoveItem(key string) error {
	if err := s.keychain.Delete(s.service(key)); err != nil {
		slog.Debug("SecureStore keychain delete failed", "error", err, "key", key)
	}
	if err := s.fallback.RemoveItem(key); err != nil {
		slog.Error("SecureStore fallback delete failed", "error", err, "key", key)
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Keychain exposes the underlying keychain for capability probes and
// biometry-gated entries (used by the biometric gate).
func (s *SecureStore) Keychain() Keychain {
	return s.keychain
}

// service maps a storage key to an isolated keychain service name.
func (s *SecureStore) service(key string) string {
	return s.serviceBase + "." + key
}
