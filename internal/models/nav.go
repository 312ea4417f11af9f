// Package models defines navigation config structures for the Academy Shell.
package models

// NavProvenance records which tier of the fallback chain produced a NavConfig.
type NavProvenance string

const (
	// NavFromNetwork means the config came from the remote endpoint.
	NavFromNetwork NavProvenance = "network"
	// NavFromCache means the config came from the local cache.
	NavFromCache NavProvenance = "cache"
	// NavFromFallback means the compiled-in default config was used.
	NavFromFallback NavProvenance = "fallback"
)

// NavConfig is the server-described navigation layout: tabs, drawer sections
// and header feature flags. It is replaced wholesale on each successful load.
type NavConfig struct {
	Version int             `json:"version"`
	Tabs    []TabItem       `json:"tabs"`
	Drawer  []DrawerSection `json:"drawer"`
	Header  HeaderConfig    `json:"header"`
}

// TabItem describes one bottom tab.
type TabItem struct {
	ID string `json:"id"`
	// Icon is a key into the predefined icon map.
	Icon string `json:"icon"`
	// LabelKey is the i18n key; LabelFallback is the literal fallback text.
	LabelKey      string `json:"labelKey"`
	LabelFallback string `json:"labelFallback"`
	// Path is relative to the academy root, e.g. "/" or "/dashboard".
	Path string `json:"path"`
	// Badge type; "notifications" shows the unread count.
	Badge string `json:"badge,omitempty"`
}

// DrawerSection groups drawer items under an optional title.
type DrawerSection struct {
	Title string       `json:"title,omitempty"`
	Items []DrawerItem `json:"items"`
}

// DrawerItem describes one drawer entry.
type DrawerItem struct {
	ID            string `json:"id"`
	Icon          string `json:"icon"`
	LabelKey      string `json:"labelKey"`
	LabelFallback string `json:"labelFallback"`
	Path          string `json:"path"`
	// External items open in the system browser instead of the embedded surface.
	External bool `json:"external,omitempty"`
}

// HeaderConfig carries header feature flags.
type HeaderConfig struct {
	ShowLogo          bool `json:"showLogo"`
	ShowNotifications bool `json:"showNotifications"`
	ShowSearch        bool `json:"showSearch"`
}
