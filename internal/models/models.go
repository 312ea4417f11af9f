// Package models defines the core data structures for the Academy Shell engine.
//
// It includes the session credential bundle, the top-level app phases, and the
// statuses shared across modules.
package models

import (
	"errors"
	"time"
)

// AppPhase identifies the top-level screen-selection phase of the shell.
// Exactly one phase is active at a time.
type AppPhase string

const (
	// PhaseSplash is the initial phase shown while the session restores and
	// the first connectivity sample resolves.
	PhaseSplash AppPhase = "splash"
	// PhaseOfflineColdStart is shown when a cold start finds no network and no
	// session; it never occurs once ready has been reached.
	PhaseOfflineColdStart AppPhase = "offline-cold-start"
	// PhaseUnauthenticated hosts the auth screens (login, register, forgot, email-sent).
	PhaseUnauthenticated AppPhase = "unauthenticated"
	// PhaseReady means the embedded content surface is active.
	PhaseReady AppPhase = "ready"
	// PhaseBiometricLocked is an effective phase only: it is derived from
	// PhaseReady plus a locked biometric gate and is never stored.
	PhaseBiometricLocked AppPhase = "biometric-locked"
)

// AuthScreen identifies the sub-screen shown while unauthenticated.
// Transitions between auth screens are pure UI navigation.
type AuthScreen string

const (
	AuthScreenLogin     AuthScreen = "login"
	AuthScreenRegister  AuthScreen = "register"
	AuthScreenForgot    AuthScreen = "forgot"
	AuthScreenEmailSent AuthScreen = "email-sent"
)

// BiometricState is the biometric gate's state.
type BiometricState string

const (
	// BiometricIdle means the gate is not blocking anything.
	BiometricIdle BiometricState = "idle"
	// BiometricLocked means a re-authentication challenge is required.
	BiometricLocked BiometricState = "locked"
	// BiometricPrompting means a challenge is currently being presented.
	BiometricPrompting BiometricState = "prompting"
)

// UpdateStatus is the version gate's verdict for the running app version.
type UpdateStatus string

const (
	// UpdateOK means the running version satisfies the server's latest version.
	UpdateOK UpdateStatus = "ok"
	// UpdateSoft means an update is available; the prompt is dismissible.
	UpdateSoft UpdateStatus = "soft"
	// UpdateForce means the running version is below the server minimum; the
	// prompt is blocking and not dismissible.
	UpdateForce UpdateStatus = "force"
)

// Error variables shared across modules.
var (
	ErrEmptyEmail    = errors.New("email cannot be empty")
	ErrEmptyPassword = errors.New("password cannot be empty")
	ErrNoSession     = errors.New("no active session")
)

// UserProfile is the identity attached to a session.
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Session is the authenticated identity credential bundle. It is owned
// exclusively by the session store; at most one live Session exists per
// process and its absence implies the unauthenticated state.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	TokenType    string      `json:"token_type,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at,omitempty"`
	User         UserProfile `json:"user"`
}

// Expired reports whether the access token expiry has passed.
// A zero expiry is treated as not expired.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// VersionInfo is the version-check endpoint response contract.
type VersionInfo struct {
	MinVersion    string    `json:"minVersion"`
	LatestVersion string    `json:"latestVersion"`
	UpdateURL     UpdateURL `json:"updateUrl"`
}

// UpdateURL carries per-platform store links for update prompts.
type UpdateURL struct {
	IOS     string `json:"ios"`
	Android string `json:"android"`
}

// DeepLinkKind discriminates how an incoming deep link is handled.
type DeepLinkKind string

const (
	// DeepLinkOAuthCallback carries an authorization code to exchange for a
	// session; it is applied immediately and never queued.
	DeepLinkOAuthCallback DeepLinkKind = "oauth-callback"
	// DeepLinkContentPath is an in-content navigation target, queued until ready.
	DeepLinkContentPath DeepLinkKind = "content-path"
)

// DeepLink is a parsed custom-scheme URI received by the shell.
type DeepLink struct {
	Kind DeepLinkKind `json:"kind"`
	// Code is set for oauth-callback links.
	Code string `json:"code,omitempty"`
	// Path is set for content-path links, relative to the academy root.
	Path string `json:"path,omitempty"`
}
