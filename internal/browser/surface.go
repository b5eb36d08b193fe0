package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"

	"github.com/snapscroll/snapscroll/internal/logger"
	"github.com/snapscroll/snapscroll/pkg/capture"
)

// Surface implements capture.Surface over the session tab, against either
// the root scrolling context or a specific container element.
type Surface struct {
	b           *Browser
	container   capture.Container
	settleDelay time.Duration
}

// Surface binds the resolved container to this browser session.
func (b *Browser) Surface(c capture.Container, settleDelay time.Duration) *Surface {
	return &Surface{b: b, container: c, settleDelay: settleDelay}
}

// elementExpr wraps a per-element expression in a querySelector lookup,
// falling back to zero when the element has disappeared.
func (s *Surface) elementExpr(field string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? %s : 0;
	})()`, strconv.Quote(s.container.Selector), field)
}

// ContentHeight returns the total scrollable height.
func (s *Surface) ContentHeight(ctx context.Context) (int, error) {
	expr := `Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`
	if !s.container.IsWindow() {
		expr = s.elementExpr("el.scrollHeight")
	}
	return s.evalInt(ctx, expr)
}

// VisibleHeight returns the visible (client) height.
func (s *Surface) VisibleHeight(ctx context.Context) (int, error) {
	expr := `window.innerHeight`
	if !s.container.IsWindow() {
		expr = s.elementExpr("el.clientHeight")
	}
	return s.evalInt(ctx, expr)
}

// ScrollOffset returns the current vertical scroll position, rounded to
// whole pixels so fractional sub-pixel offsets cannot defeat the loop's
// stagnation comparison.
func (s *Surface) ScrollOffset(ctx context.Context) (int, error) {
	expr := `Math.round(window.pageYOffset || document.documentElement.scrollTop)`
	if !s.container.IsWindow() {
		expr = s.elementExpr("Math.round(el.scrollTop)")
	}
	return s.evalInt(ctx, expr)
}

// ScrollBy issues a relative scroll against the container, or the root
// context when the window sentinel is in play.
func (s *Surface) ScrollBy(ctx context.Context, delta int) error {
	expr := fmt.Sprintf(`window.scrollBy(0, %d)`, delta)
	if !s.container.IsWindow() {
		expr = s.elementExpr(fmt.Sprintf("el.scrollBy(0, %d)", delta))
	}
	if err := s.b.run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("scroll %s: %w", s.container.Selector, err)
	}
	return nil
}

// WaitSettled waits for network quiet with a bounded timeout, then a fixed
// settle delay for layout and paint. The idle timeout is advisory: its
// expiry is logged as a warning and the capture proceeds.
func (s *Surface) WaitSettled(ctx context.Context) error {
	if err := s.b.waitIdle(ctx, s.b.cfg.IdleTimeout); err != nil {
		if !errors.Is(err, errIdleTimeout) {
			return err
		}
		logger.Warn("timeout waiting for network idle, continuing", "timeout", s.b.cfg.IdleTimeout)
	}
	select {
	case <-time.After(s.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Screenshot captures the current viewport to a PNG file at path.
func (s *Surface) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Debug("tile written", "path", path, "size", humanize.Bytes(uint64(len(buf))))
	return nil
}

func (s *Surface) evalInt(ctx context.Context, expr string) (int, error) {
	var v float64
	if err := s.b.run(ctx, chromedp.Evaluate(expr, &v)); err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", s.container.Selector, err)
	}
	return int(v), nil
}
