package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// DeepLinkScheme is the custom URI scheme the shell is registered for.
const DeepLinkScheme = "kodiq"

// ParseDeepLink decodes a kodiq:// URI into a DeepLink. The auth callback
// (kodiq://auth/callback?code=...) carries an OAuth authorization code;
// every other link is an in-content navigation target.
func ParseDeepLink(raw string) (models.DeepLink, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return models.DeepLink{}, fmt.Errorf("failed to parse deep link: %w", err)
	}
	if u.Scheme != DeepLinkScheme {
		return models.DeepLink{}, fmt.Errorf("unsupported deep link scheme %q", u.Scheme)
	}

	if u.Host == "auth" && strings.TrimSuffix(u.Path, "/") == "/callback" {
		code := u.Query().Get("code")
		if code == "" {
			return models.DeepLink{}, fmt.Errorf("auth callback without code")
		}
		return models.DeepLink{Kind: models.DeepLinkOAuthCallback, Code: code}, nil
	}

	path := "/" + u.Host + u.Path
	if u.Host == "" {
		path = u.Path
	}
	if path == "" || path == "/" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return models.DeepLink{Kind: models.DeepLinkContentPath, Path: path}, nil
}
