package bridge

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kodiq-ai/academy-shell/internal/models"
	"github.com/kodiq-ai/academy-shell/internal/widget"
)

// SignOuter ends the current session. The session store satisfies it.
type SignOuter interface {
	SignOut(ctx context.Context)
}

// Sharer presents the platform share sheet.
type Sharer interface {
	Share(ctx context.Context, req models.ShareRequest) error
}

// RatingPrompter may show the store rating prompt after an achievement.
type RatingPrompter interface {
	MaybePrompt(ctx context.Context, event string)
}

// Handler dispatches content -> shell messages to the shell's collaborators.
// Malformed or unknown messages are dropped without side effects; a broken
// content page must never crash or destabilize the shell.
type Handler struct {
	mirror  *Mirror
	signout SignOuter
	sharer  Sharer
	widget  widget.Updater
	rating  RatingPrompter
}

// HandlerOpts holds configuration options for the Handler.
type HandlerOpts struct {
	SignOuter SignOuter
	Sharer    Sharer
	Widget    widget.Updater
	Rating    RatingPrompter
}

// HandlerOption defines a configuration option for the Handler.
type HandlerOption func(*HandlerOpts)

// WithSignOuter wires session termination for logout and auth_state messages.
func WithSignOuter(s SignOuter) HandlerOption {
	return func(o *HandlerOpts) {
		o.SignOuter = s
	}
}

// WithSharer wires the platform share sheet.
func WithSharer(s Sharer) HandlerOption {
	return func(o *HandlerOpts) {
		o.Sharer = s
	}
}

// WithWidgetUpdater wires the home-screen streak widget.
func WithWidgetUpdater(w widget.Updater) HandlerOption {
	return func(o *HandlerOpts) {
		o.Widget = w
	}
}

// WithRatingPrompter wires the store rating prompt for milestone events.
func WithRatingPrompter(r RatingPrompter) HandlerOption {
	return func(o *HandlerOpts) {
		o.Rating = r
	}
}

// NewHandler creates a Handler feeding mirror. Collaborators left unwired
// make their message types informational no-ops.
func NewHandler(mirror *Mirror, opts ...HandlerOption) *Handler {
	var cfg HandlerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Widget == nil {
		cfg.Widget = widget.NoopUpdater{}
	}

	return &Handler{
		mirror:  mirror,
		signout: cfg.SignOuter,
		sharer:  cfg.Sharer,
		widget:  cfg.Widget,
		rating:  cfg.Rating,
	}
}

// HandleRaw parses one content -> shell payload and dispatches it. Non-JSON
// payloads and unknown types are silently dropped.
func (h *Handler) HandleRaw(ctx context.Context, raw []byte) {
	var msg models.BridgeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Debug("Bridge message not JSON, dropping", "error", err)
		return
	}

	switch msg.Type {
	case models.BridgeNavigation:
		slog.Debug("Bridge content navigated", "url", msg.URL)

	case models.BridgeAuthState:
		if msg.Authenticated != nil && !*msg.Authenticated {
			slog.Info("Bridge content reports session invalid, signing out")
			if h.signout != nil {
				h.signout.SignOut(ctx)
			}
		}

	case models.BridgeTheme:
		h.mirror.SetTheme(msg.Mode)

	case models.BridgeLogout:
		slog.Info("Bridge content requested logout")
		if h.signout != nil {
			h.signout.SignOut(ctx)
		}

	case models.BridgePageMeta:
		canGoBack := msg.CanGoBack != nil && *msg.CanGoBack
		h.mirror.SetPageMeta(msg.Title, msg.Path, canGoBack)

	case models.BridgeNotificationCount:
		h.mirror.SetNotificationCount(msg.Count)

	case models.BridgeMilestone:
		slog.Info("Bridge milestone reached", "event", msg.Event)
		if h.rating != nil {
			h.rating.MaybePrompt(ctx, msg.Event)
		}

	case models.BridgeShare:
		if h.sharer == nil {
			slog.Debug("Bridge share requested with no sharer wired")
			return
		}
		req := models.ShareRequest{Title: msg.Title, Text: msg.Text, URL: msg.URL}
		if err := h.sharer.Share(ctx, req); err != nil {
			slog.Warn("Bridge share failed", "error", err)
		}

	case models.BridgeStreakUpdate:
		if err := h.widget.UpdateStreak(ctx, msg.Streak, msg.ChallengeDone); err != nil {
			slog.Warn("Bridge widget update failed", "error", err)
		}

	default:
		slog.Debug("Bridge message with unknown type, dropping", "type", msg.Type)
	}
}

// Run consumes surface messages until the channel closes or ctx is done.
func (h *Handler) Run(ctx context.Context, messages <-chan []byte) {
	for {
		select {
		case raw, ok := <-messages:
			if !ok {
				return
			}
			h.HandleRaw(ctx, raw)
		case <-ctx.Done():
			return
		}
	}
}
