// Package api provides the HTTP control surface for the Academy Shell
// daemon.
//
// It mounts the bridge WebSocket endpoint the remote content surface
// connects to, a status endpoint mirroring the state machine, and endpoints
// for feeding deep links and lifecycle events into the shell.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/app"
	"github.com/kodiq-ai/academy-shell/internal/bridge"
	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/navconfig"
	"github.com/kodiq-ai/academy-shell/internal/update"
)

// DefaultAddr is the default listen address for the control API.
const DefaultAddr = ":8080"

// Server exposes the shell over HTTP.
type Server struct {
	shell    *app.App
	surface  *bridge.RemoteSurface
	mirror   *bridge.Mirror
	nav      *navconfig.Loader
	updates  *update.Gate
	whatsNew *update.WhatsNew

	addr string
	srv  *http.Server
}

// Opts holds configuration options for the Server.
type Opts struct {
	Addr     string
	WhatsNew *update.WhatsNew
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithWhatsNew mounts the release-notes endpoint.
func WithWhatsNew(w *update.WhatsNew) Option {
	return func(o *Opts) {
		o.WhatsNew = w
	}
}

// NewServer creates a Server over the given shell components.
func NewServer(shell *app.App, surface *bridge.RemoteSurface, mirror *bridge.Mirror, nav *navconfig.Loader, updates *update.Gate, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	slog.Debug("Creating API Server", "addr", cfg.Addr)
	return &Server{
		shell:    shell,
		surface:  surface,
		mirror:   mirror,
		nav:      nav,
		updates:  updates,
		whatsNew: cfg.WhatsNew,
		addr:     cfg.Addr,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.surface.HandleUpgrade)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/deeplink", s.deeplinkHandler)
	mux.HandleFunc("/lifecycle", s.lifecycleHandler)
	mux.HandleFunc("/navconfig", s.navconfigHandler)
	if s.whatsNew != nil {
		mux.HandleFunc("/whatsnew", s.whatsNewHandler)
	}
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("API server shutdown failed", "error", err)
		}
		slog.Info("API server stopped")
		return nil
	}
}

// statusResult is the /status response body.
type statusResult struct {
	Phase          models.AppPhase         `json:"phase"`
	EffectivePhase models.AppPhase         `json:"effectivePhase"`
	AuthScreen     models.AuthScreen       `json:"authScreen"`
	OfflineBanner  bool                    `json:"offlineBanner"`
	UpdateStatus   models.UpdateStatus     `json:"updateStatus"`
	StoreURL       string                  `json:"storeUrl,omitempty"`
	Navigation     models.NavigationMirror `json:"navigation"`
	Connections    int                     `json:"connections"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status, storeURL := s.updates.Status()
	writeJSONResponse(w, http.StatusOK, models.Success(statusResult{
		Phase:          s.shell.Phase(),
		EffectivePhase: s.shell.EffectivePhase(),
		AuthScreen:     s.shell.AuthScreen(),
		OfflineBanner:  s.shell.OfflineBanner(),
		UpdateStatus:   status,
		StoreURL:       storeURL,
		Navigation:     s.mirror.Snapshot(),
		Connections:    s.surface.ConnectionCount(),
	}))
}

func (s *Server) deeplinkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.deeplinkHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	link, err := app.ParseDeepLink(req.URL)
	if err != nil {
		slog.Warn("Server.deeplinkHandler: rejected deep link", "error", err, "url", req.URL)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	s.shell.HandleDeepLink(r.Context(), link)
	slog.Info("Server.deeplinkHandler: deep link accepted", "kind", link.Kind)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Deep link accepted", link))
}

func (s *Server) lifecycleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Event string `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	switch req.Event {
	case "background":
		s.shell.Background()
	case "foreground":
		s.shell.Foreground(context.Background())
	case "retry":
		s.shell.Retry(context.Background())
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("unknown lifecycle event %q", req.Event)))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Lifecycle event applied", req.Event))
}

func (s *Server) whatsNewHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
			"entries": s.whatsNew.Pending(),
		}))
	case http.MethodPost:
		if err := s.whatsNew.Dismiss(); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Release notes dismissed", nil))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) navconfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	config, provenance := s.nav.Current()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"provenance": provenance,
		"config":     config,
	}))
}
