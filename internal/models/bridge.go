// Package models defines the bridge message contract between the shell and
// the embedded content surface.
//
// Content -> shell messages are JSON objects discriminated by a "type" field.
// Shell -> content traffic is injected script (see the bridge package).
package models

// BridgeMessageType discriminates content -> shell messages.
type BridgeMessageType string

const (
	BridgeNavigation        BridgeMessageType = "navigation"
	BridgeAuthState         BridgeMessageType = "auth_state"
	BridgeTheme             BridgeMessageType = "theme"
	BridgeLogout            BridgeMessageType = "logout"
	BridgePageMeta          BridgeMessageType = "page_meta"
	BridgeNotificationCount BridgeMessageType = "notification_count"
	BridgeMilestone         BridgeMessageType = "milestone"
	BridgeShare             BridgeMessageType = "share"
	BridgeStreakUpdate      BridgeMessageType = "streak_update"
)

// BridgeMessage is the decoded envelope of a content -> shell message.
// Only the fields relevant to the message's Type are populated.
type BridgeMessage struct {
	Type BridgeMessageType `json:"type"`

	// navigation
	URL string `json:"url,omitempty"`

	// auth_state
	Authenticated *bool `json:"authenticated,omitempty"`

	// theme
	Mode string `json:"mode,omitempty"`

	// page_meta
	Title     string `json:"title,omitempty"`
	Path      string `json:"path,omitempty"`
	CanGoBack *bool  `json:"canGoBack,omitempty"`

	// notification_count
	Count int `json:"count,omitempty"`

	// milestone
	Event string `json:"event,omitempty"`

	// share
	Text string `json:"text,omitempty"`

	// streak_update
	Streak        int  `json:"streak,omitempty"`
	ChallengeDone bool `json:"challengeDone,omitempty"`
}

// ShareRequest is the payload handed to the platform share collaborator.
type ShareRequest struct {
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
	URL   string `json:"url,omitempty"`
}

// NavigationMirror is the shell's view of the content surface's navigation
// state, used for hardware back handling and native chrome highlighting.
type NavigationMirror struct {
	CanGoBack         bool   `json:"canGoBack"`
	Path              string `json:"path"`
	Title             string `json:"title"`
	Theme             string `json:"theme,omitempty"`
	NotificationCount int    `json:"notificationCount"`
}
