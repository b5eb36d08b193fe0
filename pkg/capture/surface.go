// Package capture implements the scroll-and-snap control loop: resolving
// the scrollable container on a loaded page and driving it through
// overlapping viewport-sized steps, capturing one screenshot per stable
// scroll position until the content end is reached.
package capture

import "context"

// WindowSelector is the sentinel container label meaning the page's root
// scrolling context rather than a specific element.
const WindowSelector = "window"

// Surface is the narrow capability interface the capture loop needs from a
// live page. Implementations are typically backed by a browser-automation
// session; tests substitute an in-memory fake.
type Surface interface {
	// ContentHeight returns the total scrollable height of the surface.
	ContentHeight(ctx context.Context) (int, error)

	// VisibleHeight returns the visible (client) height of the surface.
	VisibleHeight(ctx context.Context) (int, error)

	// ScrollOffset returns the current vertical scroll position.
	ScrollOffset(ctx context.Context) (int, error)

	// ScrollBy issues a relative vertical scroll. Scrolling past the end of
	// the content is not an error; the offset simply stops advancing.
	ScrollBy(ctx context.Context, delta int) error

	// WaitSettled blocks until the page looks settled after a scroll:
	// network activity has gone idle (bounded wait, advisory — expiry is
	// logged, not returned) plus a fixed delay for layout and paint.
	// Only context cancellation is returned as an error.
	WaitSettled(ctx context.Context) error

	// Screenshot captures the current viewport to a PNG file at path.
	// Failures here are fatal for the URL being processed.
	Screenshot(ctx context.Context, path string) error
}

// Container identifies the scroll container chosen for a page: either a CSS
// selector for a specific element, or WindowSelector for the page root.
// It is never persisted; it lives only for the duration of one capture.
type Container struct {
	Selector string
}

// IsWindow reports whether the container is the root scrolling context.
func (c Container) IsWindow() bool {
	return c.Selector == WindowSelector
}

// Tile records one captured screenshot: the owning URL, the file it was
// written to, the scroll offset at capture time and the nominal tile height.
type Tile struct {
	URL    string
	Path   string
	Y      int
	Height int
}
