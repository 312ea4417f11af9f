package bridge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kodiq-ai/academy-shell/internal/models"
)

// CookieChunkSize bounds each session cookie chunk. A full session payload
// (tokens plus profile) can exceed a single cookie's value limit, so the
// URL-encoded payload is split across key.0, key.1, ... cookies.
const CookieChunkSize = 3500

// NativeFlagScript returns the script injected before content loads. It sets
// the native-context flag the content reads to suppress its own chrome, and
// disables overscroll bounce.
func NativeFlagScript() string {
	return `(function() {
  window.__KODIQ_NATIVE__ = true;
  document.body.style.overscrollBehavior = 'none';
  true;
})();`
}

// SessionScript returns the script that hands the session to the content:
// the JSON payload goes into localStorage under storageKey and, URL-encoded
// and chunked, into storageKey.N cookies scoped to cookieDomain.
func SessionScript(session *models.Session, storageKey, cookieDomain string) (string, error) {
	if session == nil {
		return "", fmt.Errorf("no session to inject")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	literal, err := json.Marshal(string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encode session literal: %w", err)
	}

	var b strings.Builder
	b.WriteString("(function() {\n")
	fmt.Fprintf(&b, "  try { localStorage.setItem(%q, %s); } catch (e) {}\n", storageKey, literal)

	encoded := url.QueryEscape(string(payload))
	for i, chunk := range chunkString(encoded, CookieChunkSize) {
		fmt.Fprintf(&b, "  document.cookie = %q;\n",
			fmt.Sprintf("%s.%d=%s; Domain=%s; Path=/; Secure; SameSite=Lax", storageKey, i, chunk, cookieDomain))
	}
	b.WriteString("  true;\n})();")
	return b.String(), nil
}

// ClearSessionScript returns the script that removes an injected session:
// the localStorage entry and every plausible cookie chunk are cleared.
func ClearSessionScript(storageKey, cookieDomain string) string {
	var b strings.Builder
	b.WriteString("(function() {\n")
	fmt.Fprintf(&b, "  try { localStorage.removeItem(%q); } catch (e) {}\n", storageKey)
	// Session payloads never exceed a handful of chunks; expiring a fixed
	// range covers every chunk a previous injection could have written.
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "  document.cookie = %q;\n",
			fmt.Sprintf("%s.%d=; Domain=%s; Path=/; Expires=Thu, 01 Jan 1970 00:00:00 GMT", storageKey, i, cookieDomain))
	}
	b.WriteString("  true;\n})();")
	return b.String()
}

// NavigateScript returns the script that asks the content's router to
// navigate to path without a full reload, falling back to a hard location
// change if the in-page dispatch throws.
func NavigateScript(path, baseURL string) string {
	full := path
	if !strings.HasPrefix(path, "http") {
		full = baseURL + path
	}
	msg, _ := json.Marshal(map[string]string{"type": "navigate", "path": path})
	literal, _ := json.Marshal(string(msg))
	fullLiteral, _ := json.Marshal(full)
	return fmt.Sprintf(`(function() {
  try {
    window.dispatchEvent(new MessageEvent('message', { data: %s }));
  } catch (e) {
    window.location.href = %s;
  }
  true;
})();`, literal, fullLiteral)
}

// MessageScript returns the script delivering a shell -> content message
// (connectivity, push_token, set_locale) as a synthetic message event.
func MessageScript(payload any) (string, error) {
	msg, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	literal, err := json.Marshal(string(msg))
	if err != nil {
		return "", fmt.Errorf("failed to encode message literal: %w", err)
	}
	return fmt.Sprintf(`(function() {
  try { window.dispatchEvent(new MessageEvent('message', { data: %s })); } catch (e) {}
  true;
})();`, literal), nil
}

func chunkString(s string, size int) []string {
	if s == "" {
		return nil
	}
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
