package update

import (
	"log/slog"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

// lastSeenVersionKey persists the newest changelog version the user has seen.
const lastSeenVersionKey = "last_seen_version"

// ChangelogEntry is one release's what's-new content, newest first.
type ChangelogEntry struct {
	Version string
	Title   string
	Items   []string
}

// Changelog is the compiled-in release history shown by the what's-new
// prompt. Newest entry first.
var Changelog = []ChangelogEntry{
	{
		Version: "1.1.0",
		Title:   "Нативная навигация",
		Items: []string{
			"Нативные табы внизу экрана",
			"Header с логотипом и уведомлениями",
			"Боковое меню (бургер)",
			"Биометрическая разблокировка",
			"Онбординг для новых пользователей",
			"Тактильный отклик при навигации",
		},
	},
}

// WhatsNew decides whether release notes should be shown after an upgrade.
type WhatsNew struct {
	prefs   store.Store
	entries []ChangelogEntry
}

// NewWhatsNew creates a WhatsNew over the compiled-in changelog.
func NewWhatsNew(prefs store.Store) *WhatsNew {
	return &WhatsNew{prefs: prefs, entries: Changelog}
}

// Pending returns the changelog entries newer than the last version the user
// dismissed. A fresh install has no last-seen version and shows nothing; the
// prompt is for upgrades only.
func (w *WhatsNew) Pending() []ChangelogEntry {
	lastSeen, ok, err := w.prefs.GetItem(lastSeenVersionKey)
	if err != nil {
		slog.Warn("WhatsNew last-seen read failed", "error", err)
		return nil
	}
	if !ok || lastSeen == "" {
		return nil
	}

	var pending []ChangelogEntry
	for _, entry := range w.entries {
		if CompareVersions(entry.Version, lastSeen) > 0 {
			pending = append(pending, entry)
		}
	}
	return pending
}

// Dismiss records the newest changelog version as seen.
func (w *WhatsNew) Dismiss() error {
	if len(w.entries) == 0 {
		return nil
	}
	return w.prefs.SetItem(lastSeenVersionKey, w.entries[0].Version)
}

// MarkInstalled seeds the last-seen version on first run so the next upgrade
// can tell what is actually new.
func (w *WhatsNew) MarkInstalled(version string) error {
	_, ok, err := w.prefs.GetItem(lastSeenVersionKey)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return w.prefs.SetItem(lastSeenVersionKey, version)
}
