package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/auth"
	"github.com/kodiq-ai/academy-shell/internal/biometric"
	"github.com/kodiq-ai/academy-shell/internal/bridge"
	"github.com/kodiq-ai/academy-shell/internal/connectivity"
	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/navconfig"
	"github.com/kodiq-ai/academy-shell/internal/securestore"
	"github.com/kodiq-ai/academy-shell/internal/store"
	"github.com/kodiq-ai/academy-shell/internal/telemetry"
	"github.com/kodiq-ai/academy-shell/internal/update"
	"github.com/kodiq-ai/academy-shell/internal/widget"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixture bundles the app under test with its scriptable collaborators.
type fixture struct {
	app      *App
	timer    *ManualTimer
	reach    *connectivity.MockReachability
	provider *auth.MockProvider
	sessions *auth.SessionStore
	gate     *biometric.Gate
	keychain *securestore.MemKeychain
	clock    *fakeClock
	surface  *bridge.MockSurface
	mirror   *bridge.Mirror
	widget   *widget.MockUpdater
	reporter *telemetry.MockReporter
	storage  *store.InMemoryStore
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	versionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.VersionInfo{MinVersion: "1.0.0", LatestVersion: "1.0.0"})
	}))
	t.Cleanup(versionSrv.Close)

	storage := store.NewInMemoryStore()
	provider := auth.NewMockProvider()
	sessions := auth.NewSessionStore(provider, storage, "sb-test-auth-token")

	keychain := securestore.NewMemKeychain()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	gate := biometric.NewGate(keychain, storage, biometric.WithClock(clock.Now))

	reach := connectivity.NewMockReachability(online)
	monitor := connectivity.NewMonitor(reach)
	t.Cleanup(monitor.Close)

	nav := navconfig.NewLoader(failing.URL, storage,
		navconfig.WithHTTPClient(failing.Client()),
		navconfig.WithRetries(0),
		navconfig.WithBaseDelay(time.Millisecond))
	updates := update.NewGate(versionSrv.URL, "1.0.0", "ios", update.WithHTTPClient(versionSrv.Client()))

	surface := bridge.NewMockSurface()
	mirror := bridge.NewMirror()
	widgetMock := &widget.MockUpdater{}
	handler := bridge.NewHandler(mirror,
		bridge.WithSignOuter(sessions),
		bridge.WithWidgetUpdater(widgetMock))

	timer := NewManualTimer()
	reporter := &telemetry.MockReporter{}

	a := New(
		Config{
			AcademyURL:   "https://kodiq.ai/academy",
			StorageKey:   "sb-test-auth-token",
			CookieDomain: ".kodiq.ai",
			Platform:     "ios",
		},
		Deps{
			Monitor:  monitor,
			Sessions: sessions,
			Gate:     gate,
			Nav:      nav,
			Updates:  updates,
			Surface:  surface,
			Handler:  handler,
			Mirror:   mirror,
		},
		WithTimer(timer),
		WithReporter(reporter),
	)
	t.Cleanup(a.Stop)

	return &fixture{
		app: a, timer: timer, reach: reach, provider: provider, sessions: sessions,
		gate: gate, keychain: keychain, clock: clock, surface: surface,
		mirror: mirror, widget: widgetMock, reporter: reporter, storage: storage,
	}
}

func waitForPhase(t *testing.T, a *App, want models.AppPhase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.Phase() != want {
		if time.Now().After(deadline) {
			t.Fatalf("phase = %s, want %s", a.Phase(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForScript(t *testing.T, surface *bridge.MockSurface, fragment string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(strings.Join(surface.InjectedScripts(), "\n"), fragment) {
		if time.Now().After(deadline) {
			t.Fatalf("script containing %q never injected", fragment)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func persistSession(f *fixture) {
	session := models.Session{
		AccessToken:  "persisted-token",
		RefreshToken: "persisted-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.UserProfile{ID: "user-1"},
	}
	raw, _ := json.Marshal(session)
	f.storage.SetItem("sb-test-auth-token", string(raw))
}

func TestColdStartOfflineThenRetry(t *testing.T) {
	f := newFixture(t, false)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.app.Phase() != models.PhaseSplash {
		t.Fatalf("expected splash before the timer fires, got %s", f.app.Phase())
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseOfflineColdStart)

	// Network restored: retry leads to the login screen.
	f.reach.SetOnline(true)
	f.app.Retry(context.Background())
	waitForPhase(t, f.app, models.PhaseUnauthenticated)
	if f.app.AuthScreen() != models.AuthScreenLogin {
		t.Errorf("expected login sub-screen, got %s", f.app.AuthScreen())
	}
}

func TestColdStartWithPersistedSessionGoesStraightToReady(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)

	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	waitForScript(t, f.surface, "sb-test-auth-token")
	loaded := f.surface.Loaded()
	if len(loaded) == 0 || loaded[0] != "https://kodiq.ai/academy" {
		t.Errorf("content not loaded: %v", loaded)
	}
	if !strings.Contains(strings.Join(f.surface.InjectedScripts(), "\n"), "__KODIQ_NATIVE__") {
		t.Error("native flag not injected")
	}
}

func TestSplashWaitsForAllThreeInputs(t *testing.T) {
	f := newFixture(t, true)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Restore and connectivity resolve quickly; the timer has not fired.
	time.Sleep(50 * time.Millisecond)
	if f.app.Phase() != models.PhaseSplash {
		t.Fatalf("left splash before the timer fired: %s", f.app.Phase())
	}

	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseUnauthenticated)
}

func TestOnceReadyOfflineNeverEvicts(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	// Arbitrary connectivity flapping must never leave ready.
	for _, online := range []bool{false, true, false, false, true, false} {
		f.reach.SetOnline(online)
		if f.app.Phase() != models.PhaseReady {
			t.Fatalf("connectivity flap evicted ready, phase = %s", f.app.Phase())
		}
	}
	if !f.app.OfflineBanner() {
		t.Error("expected offline banner while offline in ready")
	}
	f.reach.SetOnline(true)
	if f.app.OfflineBanner() {
		t.Error("banner survived connectivity return")
	}
}

func TestBiometricLockScenario(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.gate.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	sessionBefore := f.sessions.Current()

	f.app.Background()
	f.clock.Advance(6 * time.Minute)
	f.app.Foreground(context.Background())

	if f.app.EffectivePhase() != models.PhaseBiometricLocked {
		t.Fatalf("expected biometric-locked effective phase, got %s", f.app.EffectivePhase())
	}
	if f.app.Phase() != models.PhaseReady {
		t.Errorf("logical phase must stay ready, got %s", f.app.Phase())
	}

	ok, err := f.gate.Unlock(context.Background())
	if err != nil || !ok {
		t.Fatalf("unlock failed: ok=%v err=%v", ok, err)
	}
	if f.app.EffectivePhase() != models.PhaseReady {
		t.Errorf("expected ready after unlock, got %s", f.app.EffectivePhase())
	}
	if f.sessions.Current() != sessionBefore {
		t.Error("unlock must not touch the session")
	}
}

func TestSignOutFromLockScreenReleasesGate(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.gate.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	f.app.Background()
	f.clock.Advance(6 * time.Minute)
	f.app.Foreground(context.Background())
	if f.app.EffectivePhase() != models.PhaseBiometricLocked {
		t.Fatalf("expected biometric-locked, got %s", f.app.EffectivePhase())
	}

	// Signing out from the lock screen must release the gate along with
	// the session.
	f.sessions.SignOut(context.Background())
	waitForPhase(t, f.app, models.PhaseUnauthenticated)
	if f.gate.State() != models.BiometricIdle {
		t.Errorf("gate state after sign-out = %s, want idle", f.gate.State())
	}

	// A fresh sign-in never inherits the previous session's lock.
	if err := f.sessions.SignInWithPassword(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForPhase(t, f.app, models.PhaseReady)
	if f.app.EffectivePhase() != models.PhaseReady {
		t.Errorf("effective phase after re-sign-in = %s, want ready", f.app.EffectivePhase())
	}
}

func TestStreakUpdateReachesWidgetExactlyOnce(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	f.surface.Push([]byte(`{"type":"streak_update","streak":5,"challengeDone":true}`))

	deadline := time.Now().Add(2 * time.Second)
	for f.widget.CallCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("widget never called")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if f.widget.CallCount() != 1 {
		t.Fatalf("expected exactly 1 widget call, got %d", f.widget.CallCount())
	}
	call := f.widget.Calls[0]
	if call.Streak != 5 || !call.ChallengeDone {
		t.Errorf("unexpected widget payload %+v", call)
	}
}

func TestBridgeLogoutReturnsToLogin(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	f.surface.Push([]byte(`{"type":"logout"}`))
	waitForPhase(t, f.app, models.PhaseUnauthenticated)
	waitForScript(t, f.surface, "removeItem")
}

func TestSignInFromLoginEntersReady(t *testing.T) {
	f := newFixture(t, true)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseUnauthenticated)

	f.app.ShowRegister()
	if f.app.AuthScreen() != models.AuthScreenRegister {
		t.Errorf("sub-screen navigation broken: %s", f.app.AuthScreen())
	}
	if f.app.Phase() != models.PhaseUnauthenticated {
		t.Error("sub-screen navigation must not change the phase")
	}

	if err := f.sessions.SignInWithPassword(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForPhase(t, f.app, models.PhaseReady)
}

func TestContentDeepLinkQueuedUntilReady(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.app.HandleDeepLink(context.Background(), models.DeepLink{
		Kind: models.DeepLinkContentPath, Path: "/skill-map",
	})

	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	waitForScript(t, f.surface, "/skill-map")
}

func TestOAuthDeepLinkExchangedImmediately(t *testing.T) {
	f := newFixture(t, true)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Still in splash: the code is exchanged anyway, never queued.
	f.app.HandleDeepLink(context.Background(), models.DeepLink{
		Kind: models.DeepLinkOAuthCallback, Code: "auth-code-1",
	})

	deadline := time.Now().Add(2 * time.Second)
	for f.provider.ExchangeCodeCalls == 0 {
		if time.Now().After(deadline) {
			t.Fatal("code never exchanged")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)
}

func TestHardwareBackUsesContentHistory(t *testing.T) {
	f := newFixture(t, true)
	persistSession(f)
	if err := f.app.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.timer.FireAll()
	waitForPhase(t, f.app, models.PhaseReady)

	f.mirror.SetPageMeta("Courses", "/courses", true)
	if !f.app.HardwareBack() {
		t.Error("expected back to be consumed when content can go back")
	}
	if f.surface.BackCalls != 1 {
		t.Errorf("expected 1 surface back call, got %d", f.surface.BackCalls)
	}

	f.mirror.SetPageMeta("Home", "/", false)
	if f.app.HardwareBack() {
		t.Error("expected back to pass through at history root")
	}
}

func TestRecoverBoundaryReportsPanics(t *testing.T) {
	f := newFixture(t, true)
	a := f.app

	a.safe(context.Background(), "test-boundary", func() {
		panic("handler exploded")
	})

	if f.reporter.Count() != 1 {
		t.Fatalf("expected 1 report, got %d", f.reporter.Count())
	}
	report := f.reporter.Reports[0]
	if report.Fields["boundary"] != "test-boundary" {
		t.Errorf("unexpected report fields %v", report.Fields)
	}
}

func TestParseDeepLink(t *testing.T) {
	link, err := ParseDeepLink("kodiq://auth/callback?code=abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Kind != models.DeepLinkOAuthCallback || link.Code != "abc123" {
		t.Errorf("unexpected link %+v", link)
	}

	link, err = ParseDeepLink("kodiq://skill-map")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Kind != models.DeepLinkContentPath || link.Path != "/skill-map" {
		t.Errorf("unexpected link %+v", link)
	}

	link, err = ParseDeepLink("kodiq://courses/go-basics?lesson=3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Path != "/courses/go-basics?lesson=3" {
		t.Errorf("unexpected path %q", link.Path)
	}

	if _, err := ParseDeepLink("https://kodiq.ai/academy"); err == nil {
		t.Error("expected foreign scheme to be rejected")
	}
	if _, err := ParseDeepLink("kodiq://auth/callback"); err == nil {
		t.Error("expected callback without code to be rejected")
	}
}
