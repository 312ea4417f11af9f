package securestore

import (
	"context"
	"fmt"
	"sync"
)

// MemKeychain is an in-memory Keychain for tests, mirroring the pattern of
// collaborator mocks living beside their interface.
type MemKeychain struct {
	mu      sync.Mutex
	entries map[string]string
	gated   map[string]bool

	// Unavailable makes every operation fail, simulating a device without a
	// usable keychain.
	Unavailable bool
	// Biometry toggles the capability probe.
	Biometry bool
	// ChallengeResult is returned by Challenge when set; ChallengeErr wins.
	ChallengeResult bool
	ChallengeErr    error
	// ChallengeCalls counts issued challenges.
	ChallengeCalls int
}

// NewMemKeychain creates an empty in-memory keychain with biometry available.
func NewMemKeychain() *MemKeychain {
	return &MemKeychain{
		entries:         make(map[string]string),
		gated:           make(map[string]bool),
		Biometry:        true,
		ChallengeResult: true,
	}
}

// Get reads the entry for service.
func (kc *MemKeychain) Get(service string) (string, bool, error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	if kc.Unavailable {
		return "", false, fmt.Errorf("keychain unavailable")
	}
	if kc.gated[service] {
		return "", false, fmt.Errorf("entry %s requires user presence", service)
	}
	v, ok := kc.entries[service]
	return v, ok, nil
}

// Set writes the entry for service.
func (kc *MemKeychain) Set(service, value string, access AccessControl) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	if kc.Unavailable {
		return fmt.Errorf("keychain unavailable")
	}
	if access == AccessBiometryAny && !kc.Biometry {
		return fmt.Errorf("biometry not available")
	}
	kc.entries[service] = value
	kc.gated[service] = access == AccessBiometryAny
	return nil
}

// Delete removes the entry for service.
func (kc *MemKeychain) Delete(service string) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	if kc.Unavailable {
		return fmt.Errorf("keychain unavailable")
	}
	delete(kc.entries, service)
	delete(kc.gated, service)
	return nil
}

// BiometryAvailable reports the configured capability.
func (kc *MemKeychain) BiometryAvailable() bool {
	return !kc.Unavailable && kc.Biometry
}

// Challenge simulates the strong-authentication prompt.
func (kc *MemKeychain) Challenge(ctx context.Context, service string, prompt Prompt) (string, bool, error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.ChallengeCalls++
	if kc.Unavailable {
		return "", false, fmt.Errorf("keychain unavailable")
	}
	if kc.ChallengeErr != nil {
		return "", false, kc.ChallengeErr
	}
	if !kc.ChallengeResult {
		return "", false, nil
	}
	v, ok := kc.entries[service]
	return v, ok, nil
}

// Has reports whether an entry exists, bypassing gating (test inspection).
func (kc *MemKeychain) Has(service string) bool {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	_, ok := kc.entries[service]
	return ok
}
