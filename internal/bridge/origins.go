package bridge

import "strings"

// DefaultAllowedOrigins lists the origins the embedded surface may navigate
// to: the academy's own domain plus the identity-provider OAuth domains.
var DefaultAllowedOrigins = []string{
	"https://kodiq.ai",
	"https://accounts.google.com",
	"https://github.com",
	"https://api.github.com",
}

// OriginPolicy decides which navigation requests the surface may follow.
type OriginPolicy struct {
	origins []string
}

// NewOriginPolicy creates a policy over the given origins, or the defaults
// when none are given.
func NewOriginPolicy(origins ...string) *OriginPolicy {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	return &OriginPolicy{origins: origins}
}

// ShouldLoad reports whether url belongs to an allowed origin. Everything
// outside the allow-list is blocked at the shell boundary.
func (p *OriginPolicy) ShouldLoad(url string) bool {
	for _, origin := range p.origins {
		if url == origin || strings.HasPrefix(url, origin+"/") {
			return true
		}
	}
	return false
}
