// Package update implements the app-version gate.
//
// The gate compares the running version against the server's minimum and
// latest versions: below minimum is a blocking force-update, below latest is
// a dismissible soft prompt. A failed check never blocks the user; the
// previous verdict stands.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// DefaultCheckTimeout bounds a version check.
const DefaultCheckTimeout = 5 * time.Second

// Gate owns the update verdict for the running app version.
type Gate struct {
	url        string
	appVersion string
	platform   string
	client     *http.Client
	timeout    time.Duration

	mu       sync.Mutex
	status   models.UpdateStatus
	storeURL string
}

// Opts holds configuration options for the Gate.
type Opts struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option defines a configuration option for the Gate.
type Option func(*Opts)

// WithHTTPClient sets the HTTP client used for version checks.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithTimeout overrides the per-check timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// NewGate creates a Gate checking url for appVersion on the given platform
// ("ios" or "android"). The gate starts at ok.
func NewGate(url, appVersion, platform string, opts ...Option) *Gate {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultCheckTimeout
	}

	slog.Debug("Creating update Gate", "url", url, "appVersion", appVersion, "platform", platform)
	return &Gate{
		url:        url,
		appVersion: appVersion,
		platform:   platform,
		client:     client,
		timeout:    timeout,
		status:     models.UpdateOK,
	}
}

// Status returns the current verdict and the platform store URL for the
// update prompt (empty until a check has succeeded).
func (g *Gate) Status() (models.UpdateStatus, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.storeURL
}

// Check fetches the version contract and recomputes the verdict. Called at
// startup and on every return to foreground. Any failure keeps the previous
// verdict.
func (g *Gate) Check(ctx context.Context) models.UpdateStatus {
	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	info, err := g.fetch(checkCtx)
	if err != nil {
		slog.Warn("Update check failed, keeping previous verdict", "error", err)
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.status
	}

	status := models.UpdateOK
	if CompareVersions(g.appVersion, info.MinVersion) < 0 {
		status = models.UpdateForce
	} else if CompareVersions(g.appVersion, info.LatestVersion) < 0 {
		status = models.UpdateSoft
	}

	storeURL := info.UpdateURL.Android
	if g.platform == "ios" {
		storeURL = info.UpdateURL.IOS
	}

	g.mu.Lock()
	g.status = status
	g.storeURL = storeURL
	g.mu.Unlock()

	slog.Info("Update check completed", "status", status, "appVersion", g.appVersion,
		"minVersion", info.MinVersion, "latestVersion", info.LatestVersion)
	return status
}

// Dismiss downgrades a soft prompt to ok. A force verdict cannot be
// dismissed.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == models.UpdateSoft {
		g.status = models.UpdateOK
		slog.Debug("Update prompt dismissed")
	}
}

func (g *Gate) fetch(ctx context.Context) (models.VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return models.VersionInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return models.VersionInfo{}, fmt.Errorf("version endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.VersionInfo{}, fmt.Errorf("version endpoint returned status %d", resp.StatusCode)
	}

	var info models.VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.VersionInfo{}, fmt.Errorf("failed to decode version info: %w", err)
	}
	return info, nil
}

// CompareVersions compares dotted version strings numerically per component.
// Returns a negative value when a < b, zero when equal, positive when a > b.
// Missing components count as zero, so "1.2" equals "1.2.0".
func CompareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			return na - nb
		}
	}
	return 0
}
