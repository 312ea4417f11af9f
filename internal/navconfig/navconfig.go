// Package navconfig loads the server-described navigation layout with a
// three-tier fallback chain: network, then local cache, then the compiled-in
// default. The shell always has a usable config; a load can only upgrade it.
package navconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/store"
)

const (
	// CacheKey is the store key holding the last validated network config.
	CacheKey = "kodiq:nav-config"
	// DefaultRetries is the number of re-attempts after the first fetch fails.
	DefaultRetries = 2
	// DefaultAttemptTimeout bounds each individual fetch attempt.
	DefaultAttemptTimeout = 5 * time.Second
	// DefaultBaseDelay is the delay before the first retry; it doubles per
	// attempt.
	DefaultBaseDelay = time.Second
)

// Loader owns the current NavConfig and its provenance.
type Loader struct {
	url            string
	cache          store.Store
	client         *http.Client
	retries        int
	baseDelay      time.Duration
	attemptTimeout time.Duration

	mu         sync.Mutex
	loading    bool
	config     models.NavConfig
	provenance models.NavProvenance
	listeners  map[int]func(models.NavConfig, models.NavProvenance)
	nextID     int
}

// Opts holds configuration options for the Loader.
type Opts struct {
	HTTPClient     *http.Client
	Retries        *int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// Option defines a configuration option for the Loader.
type Option func(*Opts)

// WithHTTPClient sets the HTTP client used for config fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithRetries overrides the retry count.
func WithRetries(n int) Option {
	return func(o *Opts) {
		o.Retries = &n
	}
}

// WithBaseDelay overrides the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.BaseDelay = d
	}
}

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.AttemptTimeout = d
	}
}

// NewLoader creates a Loader fetching from url and caching in cache. The
// loader starts on the compiled-in fallback config.
func NewLoader(url string, cache store.Store, opts ...Option) *Loader {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	retries := DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = DefaultBaseDelay
	}
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout == 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	slog.Debug("Creating navconfig Loader", "url", url, "retries", retries)
	return &Loader{
		url:            url,
		cache:          cache,
		client:         client,
		retries:        retries,
		baseDelay:      baseDelay,
		attemptTimeout: attemptTimeout,
		config:         FallbackConfig(),
		provenance:     models.NavFromFallback,
		listeners:      make(map[int]func(models.NavConfig, models.NavProvenance)),
	}
}

// Current returns the active config and where it came from.
func (l *Loader) Current() (models.NavConfig, models.NavProvenance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config, l.provenance
}

// Subscribe registers a config-change listener and returns an unsubscribe
// function.
func (l *Loader) Subscribe(listener func(models.NavConfig, models.NavProvenance)) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.listeners[id] = listener
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

// Load walks the fallback chain and installs the best available config.
// Called at startup and on every return to foreground. Loads never run
// concurrently: a call that finds one in flight returns the current config
// immediately.
func (l *Loader) Load(ctx context.Context) (models.NavConfig, models.NavProvenance) {
	l.mu.Lock()
	if l.loading {
		config, provenance := l.config, l.provenance
		l.mu.Unlock()
		slog.Debug("NavConfig load already in flight, returning current")
		return config, provenance
	}
	l.loading = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	if config, err := l.fetchWithRetry(ctx); err == nil {
		raw, merr := json.Marshal(config)
		if merr != nil {
			slog.Warn("NavConfig cache encode failed", "error", merr)
		} else if cerr := l.cache.SetItem(CacheKey, string(raw)); cerr != nil {
			slog.Warn("NavConfig cache write failed", "error", cerr)
		}
		l.install(config, models.NavFromNetwork)
		slog.Info("NavConfig loaded from network", "version", config.Version, "tabs", len(config.Tabs))
		return config, models.NavFromNetwork
	} else {
		slog.Warn("NavConfig network load failed, trying cache", "error", err)
	}

	if raw, ok, err := l.cache.GetItem(CacheKey); err == nil && ok {
		var config models.NavConfig
		if uerr := json.Unmarshal([]byte(raw), &config); uerr == nil && Validate(config) == nil {
			l.install(config, models.NavFromCache)
			slog.Info("NavConfig loaded from cache", "version", config.Version)
			return config, models.NavFromCache
		}
		slog.Warn("NavConfig cached payload invalid, falling back")
	}

	// Never downgrade: a previously installed network or cache config beats
	// the compiled-in fallback.
	l.mu.Lock()
	config, provenance := l.config, l.provenance
	l.mu.Unlock()
	if provenance == models.NavFromFallback {
		slog.Info("NavConfig using compiled-in fallback")
	}
	return config, provenance
}

// Validate checks the structural invariants a server or cached config must
// satisfy before it may replace the active one.
func Validate(config models.NavConfig) error {
	if len(config.Tabs) == 0 {
		return fmt.Errorf("config has no tabs")
	}
	for _, tab := range config.Tabs {
		if tab.ID == "" || tab.Path == "" {
			return fmt.Errorf("tab missing id or path")
		}
		if tab.Icon == "" || tab.LabelFallback == "" {
			return fmt.Errorf("tab %s missing icon or label", tab.ID)
		}
		if strings.HasPrefix(strings.ToLower(tab.Path), "javascript:") {
			return fmt.Errorf("tab %s has a blocked path scheme", tab.ID)
		}
	}
	for _, section := range config.Drawer {
		for _, item := range section.Items {
			if strings.HasPrefix(strings.ToLower(item.Path), "javascript:") {
				return fmt.Errorf("drawer item %s has a blocked path scheme", item.ID)
			}
		}
	}
	return nil
}

func (l *Loader) install(config models.NavConfig, provenance models.NavProvenance) {
	l.mu.Lock()
	l.config = config
	l.provenance = provenance
	listeners := make([]func(models.NavConfig, models.NavProvenance), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(config, provenance)
	}
}

// fetchWithRetry fetches the remote config with exponential backoff. Client
// errors (4xx) are terminal; server errors, timeouts, and invalid payloads
// are retried.
func (l *Loader) fetchWithRetry(ctx context.Context) (models.NavConfig, error) {
	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		config, terminal, err := l.fetchOnce(ctx)
		if err == nil {
			return config, nil
		}
		lastErr = err
		if terminal {
			return models.NavConfig{}, err
		}

		if attempt < l.retries {
			delay := l.baseDelay * (1 << attempt)
			slog.Debug("NavConfig fetch attempt failed, backing off", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return models.NavConfig{}, ctx.Err()
			}
		}
	}
	return models.NavConfig{}, lastErr
}

func (l *Loader) fetchOnce(ctx context.Context) (models.NavConfig, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, l.url, nil)
	if err != nil {
		return models.NavConfig{}, true, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return models.NavConfig{}, false, fmt.Errorf("config fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return models.NavConfig{}, true, fmt.Errorf("config endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.NavConfig{}, false, fmt.Errorf("config endpoint returned status %d", resp.StatusCode)
	}

	var config models.NavConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return models.NavConfig{}, false, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(config); err != nil {
		return models.NavConfig{}, false, fmt.Errorf("invalid config: %w", err)
	}
	return config, false, nil
}
