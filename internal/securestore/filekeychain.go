// Package securestore provides the secure credential storage adapter.
//
// This file implements a software keychain for platforms without a secure
// enclave: entries are sealed with ChaCha20-Poly1305 under a per-service key
// derived from a device key file, and kept in the plain key-value store.
package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

const (
	// deviceKeyFileName is the device key file created in the state directory.
	deviceKeyFileName = "device.key"
	// deviceKeySize is the size of the random device key in bytes.
	deviceKeySize = 32
	// entryKeyPrefix namespaces sealed entries inside the backing store.
	entryKeyPrefix = "securestore:"
)

// Authorizer stands in for the platform strong-authentication prompt.
// It returns true only when the user verifies their identity.
type Authorizer func(ctx context.Context, prompt Prompt) (bool, error)

// FileKeychain is a software Keychain implementation. Values are encrypted
// at rest; biometry-gated entries additionally require the configured
// Authorizer to approve each Challenge.
type FileKeychain struct {
	backing    store.Store
	deviceKey  []byte
	authorizer Authorizer
	gated      map[string]bool
}

// FileKeychainOption configures a FileKeychain.
type FileKeychainOption func(*FileKeychain)

// WithAuthorizer installs the strong-authentication collaborator. Without
// one, biometry is reported unavailable and Challenge always fails closed.
func WithAuthorizer(a Authorizer) FileKeychainOption {
	return func(kc *FileKeychain) {
		kc.authorizer = a
	}
}

// NewFileKeychain creates a software keychain whose device key lives in
// stateDir. The key file is created on first use.
func NewFileKeychain(backing store.Store, stateDir string, opts ...FileKeychainOption) (*FileKeychain, error) {
	key, err := loadOrCreateDeviceKey(stateDir)
	if err != nil {
		return nil, err
	}

	kc := &FileKeychain{
		backing:   backing,
		deviceKey: key,
		gated:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(kc)
	}
	slog.Debug("FileKeychain initialized", "stateDir", stateDir, "authorizer_set", kc.authorizer != nil)
	return kc, nil
}

// Get reads and unseals the entry for service.
func (kc *FileKeychain) Get(service string) (string, bool, error) {
	if kc.gated[service] {
		// Biometry-gated entries are only readable through Challenge.
		return "", false, fmt.Errorf("entry %s requires user presence", service)
	}
	return kc.read(service)
}

// Set seals and stores the entry for service.
func (kc *FileKeychain) Set(service, value string, access AccessControl) error {
	if access == AccessBiometryAny && !kc.BiometryAvailable() {
		return fmt.Errorf("biometry not available for service %s", service)
	}

	sealed, err := kc.seal(service, value)
	if err != nil {
		slog.Error("FileKeychain seal failed", "error", err, "service", service)
		return fmt.Errorf("failed to seal entry %s: %w", service, err)
	}
	if err := kc.backing.SetItem(entryKeyPrefix+service, sealed); err != nil {
		slog.Error("FileKeychain store failed", "error", err, "service", service)
		return fmt.Errorf("failed to store entry %s: %w", service, err)
	}

	kc.gated[service] = access == AccessBiometryAny
	slog.Debug("FileKeychain Set succeeded", "service", service, "access", access)
	return nil
}

// Delete removes the entry for service.
func (kc *FileKeychain) Delete(service string) error {
	delete(kc.gated, service)
	if err := kc.backing.RemoveItem(entryKeyPrefix + service); err != nil {
		slog.Error("FileKeychain Delete failed", "error", err, "service", service)
		return fmt.Errorf("failed to delete entry %s: %w", service, err)
	}
	return nil
}

// BiometryAvailable reports whether an Authorizer is configured.
func (kc *FileKeychain) BiometryAvailable() bool {
	return kc.authorizer != nil
}

// Challenge runs the strong-authentication prompt and returns the entry for
// service on a verified success.
func (kc *FileKeychain) Challenge(ctx context.Context, service string, prompt Prompt) (string, bool, error) {
	if kc.authorizer == nil {
		return "", false, fmt.Errorf("no authorizer configured")
	}

	verified, err := kc.authorizer(ctx, prompt)
	if err != nil {
		slog.Error("FileKeychain challenge failed", "error", err, "service", service)
		return "", false, fmt.Errorf("challenge failed for %s: %w", service, err)
	}
	if !verified {
		slog.Debug("FileKeychain challenge not verified", "service", service)
		return "", false, nil
	}

	return kc.read(service)
}

func (kc *FileKeychain) read(service string) (string, bool, error) {
	sealed, ok, err := kc.backing.GetItem(entryKeyPrefix + service)
	if err != nil {
		return "", false, fmt.Errorf("failed to read entry %s: %w", service, err)
	}
	if !ok {
		return "", false, nil
	}

	value, err := kc.open(service, sealed)
	if err != nil {
		slog.Error("FileKeychain unseal failed", "error", err, "service", service)
		return "", false, fmt.Errorf("failed to unseal entry %s: %w", service, err)
	}
	return value, true, nil
}

// seal encrypts value under a per-service key with a random nonce prepended.
func (kc *FileKeychain) seal(service, value string) (string, error) {
	aead, err := kc.aead(service)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (kc *FileKeychain) open(service, sealed string) (string, error) {
	aead, err := kc.aead(service)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("sealed entry too short")
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// aead derives the per-service cipher from the device key via HKDF.
func (kc *FileKeychain) aead(service string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, kc.deviceKey, nil, []byte(service))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive entry key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// loadOrCreateDeviceKey reads the device key file, generating it on first use.
func loadOrCreateDeviceKey(stateDir string) ([]byte, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(stateDir, deviceKeyFileName)
	if key, err := os.ReadFile(path); err == nil && len(key) == deviceKeySize {
		return key, nil
	}

	key := make([]byte, deviceKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate device key: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write device key: %w", err)
	}
	slog.Info("FileKeychain generated new device key", "path", path)
	return key, nil
}
