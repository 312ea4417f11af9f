// Package app implements the shell's top-level state machine.
//
// The App composes the connectivity monitor, session store, biometric gate,
// nav-config loader, update gate, push registrar, and the bridge to the
// embedded content surface, and owns the phase the UI renders: splash,
// offline-cold-start, unauthenticated, or ready. Collaborators push events
// in; the App is the only writer of the phase.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/auth"
	"github.com/kodiq-ai/academy-shell/internal/biometric"
	"github.com/kodiq-ai/academy-shell/internal/bridge"
	"github.com/kodiq-ai/academy-shell/internal/connectivity"
	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/navconfig"
	"github.com/kodiq-ai/academy-shell/internal/push"
	"github.com/kodiq-ai/academy-shell/internal/telemetry"
	"github.com/kodiq-ai/academy-shell/internal/update"
)

// DefaultSplashDelay is the minimum time the splash screen stays up.
const DefaultSplashDelay = 1500 * time.Millisecond

// Config carries the static shell configuration.
type Config struct {
	// AcademyURL is the content surface's entry URL.
	AcademyURL string
	// StorageKey is the provider storage key sessions are injected under.
	StorageKey string
	// CookieDomain scopes injected session cookies, e.g. ".kodiq.ai".
	CookieDomain string
	// Platform is "ios" or "android".
	Platform string
}

// Deps bundles the App's collaborators.
type Deps struct {
	Monitor   *connectivity.Monitor
	Sessions  *auth.SessionStore
	Gate      *biometric.Gate
	Nav       *navconfig.Loader
	Updates   *update.Gate
	Surface   bridge.Surface
	Handler   *bridge.Handler
	Mirror    *bridge.Mirror
	Registrar *push.Registrar
}

// App is the shell state machine.
type App struct {
	cfg      Config
	deps     Deps
	timer    Timer
	reporter telemetry.Reporter
	splash   time.Duration

	mu                sync.Mutex
	phase             models.AppPhase
	authScreen        models.AuthScreen
	wasReady          bool
	offlineBanner     bool
	online            bool
	splashDone        bool
	restoreDone       bool
	sampleDone        bool
	started           bool
	queued            []models.DeepLink
	lastInjectedToken string
	listeners         map[int]func(models.AppPhase)
	nextID            int
	unsubs            []func()
}

// Opts holds configuration options for the App.
type Opts struct {
	Timer       Timer
	Reporter    telemetry.Reporter
	SplashDelay time.Duration
}

// Option defines a configuration option for the App.
type Option func(*Opts)

// WithTimer overrides the splash timer implementation.
func WithTimer(t Timer) Option {
	return func(o *Opts) {
		o.Timer = t
	}
}

// WithReporter wires the telemetry reporter for the recover boundary.
func WithReporter(r telemetry.Reporter) Option {
	return func(o *Opts) {
		o.Reporter = r
	}
}

// WithSplashDelay overrides the splash delay.
func WithSplashDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.SplashDelay = d
	}
}

// New creates an App in the splash phase.
func New(cfg Config, deps Deps, opts ...Option) *App {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timer == nil {
		o.Timer = NewSimpleTimer()
	}
	if o.Reporter == nil {
		o.Reporter = telemetry.SlogReporter{}
	}
	if o.SplashDelay == 0 {
		o.SplashDelay = DefaultSplashDelay
	}

	slog.Debug("Creating App", "academyURL", cfg.AcademyURL, "platform", cfg.Platform)
	return &App{
		cfg:        cfg,
		deps:       deps,
		timer:      o.Timer,
		reporter:   o.Reporter,
		splash:     o.SplashDelay,
		phase:      models.PhaseSplash,
		authScreen: models.AuthScreenLogin,
		listeners:  make(map[int]func(models.AppPhase)),
	}
}

// Start arms the splash timer, begins session restore and the first
// connectivity check, and subscribes to collaborator events. The splash
// phase is left only when all three have completed.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("app already started")
	}
	a.started = true
	a.mu.Unlock()

	if err := a.deps.Surface.Start(ctx); err != nil {
		return fmt.Errorf("failed to start surface: %w", err)
	}
	go a.deps.Handler.Run(ctx, a.deps.Surface.Messages())

	a.mu.Lock()
	a.unsubs = append(a.unsubs,
		a.deps.Sessions.Subscribe(func(session *models.Session) {
			a.safe(ctx, "session-change", func() { a.onSessionChanged(ctx, session) })
		}),
		a.deps.Monitor.Subscribe(func(online bool) {
			a.safe(ctx, "connectivity-change", func() { a.onConnectivityChanged(online) })
		}),
		a.deps.Gate.Subscribe(func(models.BiometricState) {
			a.notifyPhase(a.EffectivePhase())
		}),
	)
	a.mu.Unlock()

	if _, err := a.timer.ScheduleAfter(a.splash, func() {
		a.safe(ctx, "splash-timer", func() {
			a.mu.Lock()
			a.splashDone = true
			a.mu.Unlock()
			a.evaluate(ctx)
		})
	}); err != nil {
		return fmt.Errorf("failed to schedule splash timer: %w", err)
	}

	go a.safe(ctx, "session-restore", func() {
		a.deps.Sessions.Restore(ctx)
		a.mu.Lock()
		a.restoreDone = true
		a.mu.Unlock()
		a.evaluate(ctx)
	})

	go a.safe(ctx, "first-connectivity", func() {
		online, err := a.deps.Monitor.Online(ctx)
		if err != nil {
			online = false
		}
		a.mu.Lock()
		a.online = online
		a.sampleDone = true
		a.mu.Unlock()
		a.evaluate(ctx)
	})

	if a.deps.Registrar != nil {
		unsub := a.deps.Registrar.WatchRefresh(ctx, func() string {
			if s := a.deps.Sessions.Current(); s != nil {
				return s.AccessToken
			}
			return ""
		})
		a.mu.Lock()
		a.unsubs = append(a.unsubs, unsub)
		a.mu.Unlock()
	}

	slog.Info("App started", "splashDelay", a.splash)
	return nil
}

// Stop releases subscriptions and tears down the surface.
func (a *App) Stop() {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if err := a.deps.Surface.Stop(); err != nil {
		slog.Warn("App surface stop failed", "error", err)
	}
	slog.Info("App stopped")
}

// Phase returns the logical phase.
func (a *App) Phase() models.AppPhase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// EffectivePhase returns the phase the UI should render: ready behind a
// locked or prompting biometric gate renders as biometric-locked.
func (a *App) EffectivePhase() models.AppPhase {
	a.mu.Lock()
	phase := a.phase
	a.mu.Unlock()

	if phase == models.PhaseReady {
		switch a.deps.Gate.State() {
		case models.BiometricLocked, models.BiometricPrompting:
			return models.PhaseBiometricLocked
		}
	}
	return phase
}

// AuthScreen returns the active unauthenticated sub-screen.
func (a *App) AuthScreen() models.AuthScreen {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authScreen
}

// ShowLogin, ShowRegister, ShowForgot and ShowEmailSent switch the
// unauthenticated sub-screen. They are pure UI navigation and never affect
// the phase.
func (a *App) ShowLogin()     { a.setAuthScreen(models.AuthScreenLogin) }
func (a *App) ShowRegister()  { a.setAuthScreen(models.AuthScreenRegister) }
func (a *App) ShowForgot()    { a.setAuthScreen(models.AuthScreenForgot) }
func (a *App) ShowEmailSent() { a.setAuthScreen(models.AuthScreenEmailSent) }

func (a *App) setAuthScreen(screen models.AuthScreen) {
	a.mu.Lock()
	a.authScreen = screen
	a.mu.Unlock()
}

// OfflineBanner reports whether the in-place offline banner is shown. It can
// only be true in the ready phase; offline never evicts a ready user.
func (a *App) OfflineBanner() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offlineBanner
}

// SubscribePhase registers a listener for effective-phase changes. The
// returned function removes the listener.
func (a *App) SubscribePhase(listener func(models.AppPhase)) func() {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.listeners[id] = listener
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Retry re-runs the connectivity check from the offline cold-start screen.
func (a *App) Retry(ctx context.Context) {
	go a.safe(ctx, "retry", func() {
		online, err := a.deps.Monitor.Online(ctx)
		if err != nil {
			online = false
		}
		a.onConnectivityChanged(online)
	})
}

// Background records the transition out of the foreground; the biometric
// gate starts its clock.
func (a *App) Background() {
	a.deps.Gate.AppBackgrounded()
	slog.Debug("App backgrounded")
}

// Foreground runs the return-to-foreground hooks: biometric elapsed check,
// nav-config reload, update check, and push registration when a session
// exists and the device is online.
func (a *App) Foreground(ctx context.Context) {
	state := a.deps.Gate.AppForegrounded()
	if state == models.BiometricLocked {
		a.notifyPhase(a.EffectivePhase())
	}

	go a.safe(ctx, "foreground-nav", func() { a.deps.Nav.Load(ctx) })
	go a.safe(ctx, "foreground-update", func() { a.deps.Updates.Check(ctx) })

	a.mu.Lock()
	online := a.online
	a.mu.Unlock()
	session := a.deps.Sessions.Current()
	if a.deps.Registrar != nil && session != nil && online {
		token := session.AccessToken
		go a.safe(ctx, "foreground-push", func() {
			if err := a.deps.Registrar.Register(ctx, token); err != nil {
				slog.Debug("App push registration failed", "error", err)
			}
		})
	}
	slog.Debug("App foregrounded")
}

// HandleDeepLink routes an incoming deep link. OAuth callbacks are exchanged
// for a session immediately and never queued; content paths are queued until
// the shell is ready, then injected as in-page navigation.
func (a *App) HandleDeepLink(ctx context.Context, link models.DeepLink) {
	switch link.Kind {
	case models.DeepLinkOAuthCallback:
		slog.Info("App exchanging OAuth deep link code")
		go a.safe(ctx, "oauth-exchange", func() {
			if err := a.deps.Sessions.ExchangeOAuthCode(ctx, link.Code); err != nil {
				slog.Error("App OAuth code exchange failed", "error", err)
			}
		})

	case models.DeepLinkContentPath:
		a.mu.Lock()
		ready := a.phase == models.PhaseReady
		if !ready {
			a.queued = append(a.queued, link)
		}
		a.mu.Unlock()

		if ready {
			a.navigateContent(ctx, link.Path)
		} else {
			slog.Debug("App queued content deep link", "path", link.Path)
		}
	}
}

// HardwareBack handles the hardware back button: content history first.
// Returns whether the event was consumed.
func (a *App) HardwareBack() bool {
	if a.Phase() != models.PhaseReady || !a.deps.Mirror.CanGoBack() {
		return false
	}
	if err := a.deps.Surface.GoBack(); err != nil {
		slog.Warn("App surface back failed", "error", err)
	}
	return true
}

// evaluate advances the phase from the current inputs.
func (a *App) evaluate(ctx context.Context) {
	session := a.deps.Sessions.Current()

	a.mu.Lock()
	phase := a.phase
	next := phase
	switch phase {
	case models.PhaseSplash:
		if !(a.splashDone && a.restoreDone && a.sampleDone) {
			a.mu.Unlock()
			return
		}
		switch {
		case session != nil:
			next = models.PhaseReady
		case a.online || a.wasReady:
			next = models.PhaseUnauthenticated
		default:
			next = models.PhaseOfflineColdStart
		}

	case models.PhaseOfflineColdStart:
		switch {
		case session != nil:
			next = models.PhaseReady
		case a.online:
			next = models.PhaseUnauthenticated
		}

	case models.PhaseUnauthenticated:
		if session != nil {
			next = models.PhaseReady
		}
	}

	if next == phase {
		a.mu.Unlock()
		return
	}
	a.phase = next
	if next == models.PhaseReady {
		a.wasReady = true
		a.offlineBanner = !a.online
	} else {
		a.offlineBanner = false
	}
	if next == models.PhaseUnauthenticated {
		a.authScreen = models.AuthScreenLogin
	}
	a.mu.Unlock()

	slog.Info("App phase transition", "from", phase, "to", next)
	if next == models.PhaseReady {
		a.enterReady(ctx, session)
	}
	a.notifyPhase(a.EffectivePhase())
}

// enterReady loads the content surface and injects the native flag and
// session, then flushes any queued deep links.
func (a *App) enterReady(ctx context.Context, session *models.Session) {
	if err := a.deps.Surface.LoadURL(a.cfg.AcademyURL); err != nil {
		slog.Error("App content load failed", "error", err)
	}
	if err := a.deps.Surface.InjectScript(ctx, bridge.NativeFlagScript()); err != nil {
		slog.Warn("App native flag injection failed", "error", err)
	}
	a.injectSession(ctx, session)

	go a.safe(ctx, "ready-nav", func() { a.deps.Nav.Load(ctx) })
	go a.safe(ctx, "ready-update", func() { a.deps.Updates.Check(ctx) })

	a.mu.Lock()
	queued := a.queued
	a.queued = nil
	online := a.online
	a.mu.Unlock()
	for _, link := range queued {
		a.navigateContent(ctx, link.Path)
	}

	if a.deps.Registrar != nil && session != nil && online {
		token := session.AccessToken
		go a.safe(ctx, "ready-push", func() {
			if err := a.deps.Registrar.Register(ctx, token); err != nil {
				slog.Debug("App push registration failed", "error", err)
			}
		})
	}
}

// injectSession writes the session into the content's storage and cookies.
// Re-injection happens only when the access token value changes.
func (a *App) injectSession(ctx context.Context, session *models.Session) {
	if session == nil {
		return
	}
	a.mu.Lock()
	if a.lastInjectedToken == session.AccessToken {
		a.mu.Unlock()
		return
	}
	a.lastInjectedToken = session.AccessToken
	a.mu.Unlock()

	js, err := bridge.SessionScript(session, a.cfg.StorageKey, a.cfg.CookieDomain)
	if err != nil {
		slog.Error("App session script build failed", "error", err)
		return
	}
	if err := a.deps.Surface.InjectScript(ctx, js); err != nil {
		slog.Warn("App session injection failed", "error", err)
	}
}

func (a *App) navigateContent(ctx context.Context, path string) {
	js := bridge.NavigateScript(path, a.cfg.AcademyURL)
	if err := a.deps.Surface.InjectScript(ctx, js); err != nil {
		slog.Warn("App content navigation failed", "error", err, "path", path)
	}
}

func (a *App) onSessionChanged(ctx context.Context, session *models.Session) {
	if session == nil {
		a.mu.Lock()
		phase := a.phase
		a.phase = models.PhaseUnauthenticated
		a.authScreen = models.AuthScreenLogin
		a.offlineBanner = false
		a.lastInjectedToken = ""
		a.mu.Unlock()

		if phase != models.PhaseUnauthenticated {
			slog.Info("App session cleared", "from", phase)
		}
		// The lock belonged to the departing session; a later sign-in must
		// not inherit it.
		a.deps.Gate.Dismiss()
		if err := a.deps.Surface.InjectScript(ctx, bridge.ClearSessionScript(a.cfg.StorageKey, a.cfg.CookieDomain)); err != nil {
			slog.Debug("App session clear injection failed", "error", err)
		}
		a.notifyPhase(a.EffectivePhase())
		return
	}

	a.mu.Lock()
	ready := a.phase == models.PhaseReady
	a.mu.Unlock()
	if ready {
		// Refreshed token: re-inject so content picks up the new credential.
		a.injectSession(ctx, session)
		return
	}
	a.evaluate(ctx)
}

func (a *App) onConnectivityChanged(online bool) {
	a.mu.Lock()
	a.online = online
	phase := a.phase
	if phase == models.PhaseReady {
		a.offlineBanner = !online
	}
	a.mu.Unlock()

	slog.Debug("App connectivity changed", "online", online, "phase", phase)
	if phase == models.PhaseOfflineColdStart && online {
		a.evaluate(context.Background())
	}
}

func (a *App) notifyPhase(phase models.AppPhase) {
	a.mu.Lock()
	listeners := make([]func(models.AppPhase), 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	for _, l := range listeners {
		l(phase)
	}
}

// safe runs fn inside the recover boundary: a panicking handler is reported
// to telemetry and the machine keeps running.
func (a *App) safe(ctx context.Context, boundary string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", boundary, r)
			slog.Error("App recovered from panic", "boundary", boundary, "panic", r)
			a.reporter.ReportError(ctx, err, map[string]string{"boundary": boundary})
		}
	}()
	fn()
}
