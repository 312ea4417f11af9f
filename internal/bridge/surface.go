// Package bridge implements the two-way protocol between the shell and the
// embedded content surface.
//
// Shell -> content traffic is injected script; content -> shell traffic is
// JSON messages discriminated by a "type" field. The package also owns the
// origin allow-list enforced on every navigation request and the navigation
// mirror the shell consults for back handling and chrome highlighting.
package bridge

import "context"

// Surface is the embedded content host collaborator.
type Surface interface {
	// Start makes the surface ready to accept content. Blocking operations
	// observe ctx.
	Start(ctx context.Context) error
	// Stop tears the surface down.
	Stop() error
	// LoadURL points the surface at url.
	LoadURL(url string) error
	// InjectScript evaluates js inside the content context.
	InjectScript(ctx context.Context, js string) error
	// GoBack navigates the content history backward.
	GoBack() error
	// Reload reloads the current content page.
	Reload() error
	// Messages streams raw content -> shell payloads. Closed on Stop.
	Messages() <-chan []byte
}
