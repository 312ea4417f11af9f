package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultProbeInterval is how often the probe re-checks reachability.
	DefaultProbeInterval = 15 * time.Second
	// DefaultProbeTimeout bounds a single probe request.
	DefaultProbeTimeout = 3 * time.Second
)

// HTTPProbe is a Reachability implementation for hosts without a platform
// network-status API. It derives reachability by polling an HTTP endpoint:
// any response means the internet is reachable, a transport error means it
// is not.
type HTTPProbe struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// ProbeOpts holds configuration options for the HTTPProbe.
type ProbeOpts struct {
	Interval time.Duration
	Client   *http.Client
}

// ProbeOption defines a configuration option for the HTTPProbe.
type ProbeOption func(*ProbeOpts)

// WithProbeInterval overrides the polling interval.
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(o *ProbeOpts) {
		o.Interval = d
	}
}

// WithProbeClient overrides the HTTP client used for probe requests.
func WithProbeClient(c *http.Client) ProbeOption {
	return func(o *ProbeOpts) {
		o.Client = c
	}
}

// NewHTTPProbe creates a probe against the given endpoint.
func NewHTTPProbe(url string, opts ...ProbeOption) *HTTPProbe {
	var cfg ProbeOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultProbeTimeout}
	}

	slog.Debug("HTTPProbe created", "url", url, "interval", cfg.Interval)
	return &HTTPProbe{url: url, interval: cfg.Interval, client: cfg.Client}
}

// Fetch performs one probe request and reports the derived sample.
func (p *HTTPProbe) Fetch(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return Sample{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// A failed probe is a valid offline reading, not an error.
		unreachable := false
		return Sample{Connected: false, InternetReachable: &unreachable}, nil
	}
	resp.Body.Close()

	reachable := true
	return Sample{Connected: true, InternetReachable: &reachable}, nil
}

// Subscribe starts a polling loop that invokes fn whenever the derived
// online flag changes. The returned function stops the loop.
func (p *HTTPProbe) Subscribe(fn func(Sample)) (unsubscribe func()) {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var last *bool
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), DefaultProbeTimeout)
			sample, err := p.Fetch(ctx)
			cancel()
			if err != nil {
				slog.Warn("HTTPProbe fetch failed", "error", err)
				continue
			}

			online := sample.Online()
			if last == nil || *last != online {
				last = &online
				fn(sample)
			}
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}
