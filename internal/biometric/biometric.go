// Package biometric implements the re-authentication gate that covers the
// content surface after a long background stay.
//
// The gate never owns screen selection: it reports a state (idle, locked,
// prompting) and the app state machine derives the effective phase from it.
// Locking is a privacy cover over already-loaded content, so the gate keeps
// the session alive; failing a challenge never signs the user out.
package biometric

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/securestore"
	"github.com/kodiq-ai/academy-shell/internal/store"
)

const (
	// LockTimeout is the background duration after which the gate locks.
	LockTimeout = 5 * time.Minute
	// enabledKey persists the user's opt-in preference.
	enabledKey = "biometric_enabled"
	// gateService is the keychain service holding the biometry-gated sentinel.
	gateService = "ai.kodiq.biometric.gate"
	// gateSentinel is the value provisioned behind the biometry policy. The
	// value is meaningless; a verified read of it is the unlock proof.
	gateSentinel = "unlocked"
)

// unlockPrompt is shown for every gate challenge.
var unlockPrompt = securestore.Prompt{
	Title:    "Unlock Kodiq Academy",
	Subtitle: "Confirm it's you to continue",
	Cancel:   "Cancel",
}

// Gate tracks background time and gates the content surface behind a
// platform strong-authentication challenge.
type Gate struct {
	keychain securestore.Keychain
	prefs    store.Store
	now      func() time.Time

	mu             sync.Mutex
	state          models.BiometricState
	backgroundedAt time.Time
	listeners      map[int]func(models.BiometricState)
	nextID         int
}

// GateOpts holds configuration options for the Gate.
type GateOpts struct {
	// Now overrides the clock (tests).
	Now func() time.Time
}

// GateOption defines a configuration option for the Gate.
type GateOption func(*GateOpts)

// WithClock overrides the gate's clock.
func WithClock(now func() time.Time) GateOption {
	return func(o *GateOpts) {
		o.Now = now
	}
}

// NewGate creates a Gate persisting its preference in prefs and provisioning
// its unlock sentinel in keychain.
func NewGate(keychain securestore.Keychain, prefs store.Store, opts ...GateOption) *Gate {
	var cfg GateOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	slog.Debug("Creating biometric Gate")
	return &Gate{
		keychain:  keychain,
		prefs:     prefs,
		now:       cfg.Now,
		state:     models.BiometricIdle,
		listeners: make(map[int]func(models.BiometricState)),
	}
}

// State returns the gate's current state.
func (g *Gate) State() models.BiometricState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Subscribe registers a state-change listener and returns an unsubscribe
// function.
func (g *Gate) Subscribe(listener func(models.BiometricState)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.listeners[id] = listener
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// Available reports whether the platform can provision biometry-gated entries.
func (g *Gate) Available() bool {
	return g.keychain.BiometryAvailable()
}

// Enabled reports the persisted opt-in preference.
func (g *Gate) Enabled() bool {
	value, ok, err := g.prefs.GetItem(enabledKey)
	if err != nil {
		slog.Warn("Biometric preference read failed", "error", err)
		return false
	}
	return ok && value == "true"
}

// Enable provisions the gated keychain sentinel and then persists the
// preference. Provisioning first means a half-completed enable fails closed:
// the preference only records opt-in after the challenge material exists.
func (g *Gate) Enable() error {
	if !g.keychain.BiometryAvailable() {
		return fmt.Errorf("biometry is not available on this device")
	}
	if err := g.keychain.Set(gateService, gateSentinel, securestore.AccessBiometryAny); err != nil {
		slog.Error("Biometric gate provisioning failed", "error", err)
		return fmt.Errorf("failed to provision biometric gate: %w", err)
	}
	if err := g.prefs.SetItem(enabledKey, "true"); err != nil {
		slog.Error("Biometric preference persist failed", "error", err)
		return fmt.Errorf("failed to persist biometric preference: %w", err)
	}
	slog.Info("Biometric gate enabled")
	return nil
}

// Disable clears the preference and the gated sentinel unconditionally, and
// releases any active lock.
func (g *Gate) Disable() error {
	if err := g.keychain.Delete(gateService); err != nil {
		slog.Warn("Biometric gate sentinel delete failed", "error", err)
	}
	if err := g.prefs.RemoveItem(enabledKey); err != nil {
		slog.Error("Biometric preference delete failed", "error", err)
		return fmt.Errorf("failed to clear biometric preference: %w", err)
	}
	g.setState(models.BiometricIdle)
	slog.Info("Biometric gate disabled")
	return nil
}

// AppBackgrounded records when the app left the foreground. The gate does not
// lock yet; locking is decided on return.
func (g *Gate) AppBackgrounded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backgroundedAt.IsZero() {
		g.backgroundedAt = g.now()
	}
}

// AppForegrounded decides whether the background stay crossed the lock
// timeout. Returns the resulting state. An already-locked gate stays locked
// regardless of the stay's length.
func (g *Gate) AppForegrounded() models.BiometricState {
	g.mu.Lock()
	at := g.backgroundedAt
	g.backgroundedAt = time.Time{}
	state := g.state
	g.mu.Unlock()

	if state == models.BiometricLocked || state == models.BiometricPrompting {
		return state
	}
	if at.IsZero() || !g.Enabled() {
		return state
	}
	if g.now().Sub(at) >= LockTimeout {
		slog.Info("Biometric gate locked after background timeout", "away", g.now().Sub(at))
		g.setState(models.BiometricLocked)
		return models.BiometricLocked
	}
	return state
}

// Unlock presents a single strong-authentication challenge. Success releases
// the lock; cancellation, failed verification, and platform errors all leave
// the gate locked. Only one challenge runs at a time.
func (g *Gate) Unlock(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.state == models.BiometricPrompting {
		g.mu.Unlock()
		return false, nil
	}
	g.state = models.BiometricPrompting
	listeners := g.listenersLocked()
	g.mu.Unlock()
	for _, l := range listeners {
		l(models.BiometricPrompting)
	}

	value, ok, err := g.keychain.Challenge(ctx, gateService, unlockPrompt)
	if err != nil {
		slog.Warn("Biometric challenge failed", "error", err)
		g.setState(models.BiometricLocked)
		return false, fmt.Errorf("biometric challenge failed: %w", err)
	}
	if !ok || value != gateSentinel {
		slog.Debug("Biometric challenge not verified")
		g.setState(models.BiometricLocked)
		return false, nil
	}

	slog.Info("Biometric gate unlocked")
	g.setState(models.BiometricIdle)
	return true, nil
}

// Dismiss releases the gate without a challenge: the lock-screen sign-out
// fallback. The departing session takes the lock with it, so the next
// sign-in starts from an idle gate.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	g.backgroundedAt = time.Time{}
	g.mu.Unlock()
	g.setState(models.BiometricIdle)
}

func (g *Gate) setState(state models.BiometricState) {
	g.mu.Lock()
	if g.state == state {
		g.mu.Unlock()
		return
	}
	g.state = state
	listeners := g.listenersLocked()
	g.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

func (g *Gate) listenersLocked() []func(models.BiometricState) {
	listeners := make([]func(models.BiometricState), 0, len(g.listeners))
	for _, l := range g.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}
