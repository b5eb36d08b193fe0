// Package browser wraps chromedp behind the narrow page surface the capture
// loop needs: navigation with a configurable wait strategy, scroll-geometry
// queries, viewport screenshots and an advisory network-idle signal. One
// browser session is reused across all URLs of a run.
package browser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/snapscroll/snapscroll/internal/logger"
	"github.com/snapscroll/snapscroll/pkg/capture"
)

// Chrome user agents matching a current stable release.
const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
)

const (
	navigateTimeout      = 90 * time.Second
	fixedWaitNavTimeout  = 60 * time.Second
	defaultIdleTimeout   = 5 * time.Second
	readyStatePollPeriod = 250 * time.Millisecond
)

// Config holds browser session settings.
type Config struct {
	Headless       bool
	Mobile         bool          // mobile-like emulation profile (touch + mobile UA)
	UserDataDir    string        // persistent profile directory, empty for ephemeral
	CookiesPath    string        // optional cookies.json applied before navigation
	UserAgent      string        // empty picks a default matching the Mobile flag
	ViewportWidth  int
	ViewportHeight int
	Scale          float64 // device scale factor
	IdleTimeout    time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 1000,
		Scale:          1.0,
		IdleTimeout:    defaultIdleTimeout,
	}
}

// Browser owns one chromedp allocator and a single tab reused across URLs.
// It is exclusively owned by the sequential capture driver; no method is
// safe for concurrent use.
type Browser struct {
	cfg         Config
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	idle        *idleTracker
}

// New launches a browser session and prepares the capture tab: network
// event tracking enabled, viewport and scale applied, cookies loaded if
// configured. Cookie loading failures are logged, not fatal.
func New(ctx context.Context, cfg Config) (*Browser, error) {
	if cfg.UserAgent == "" {
		if cfg.Mobile {
			cfg.UserAgent = mobileUserAgent
		} else {
			cfg.UserAgent = defaultUserAgent
		}
	}
	if cfg.ViewportWidth == 0 || cfg.ViewportHeight == 0 {
		d := DefaultConfig()
		cfg.ViewportWidth = d.ViewportWidth
		cfg.ViewportHeight = d.ViewportHeight
	}
	if cfg.Scale == 0 {
		cfg.Scale = DefaultConfig().Scale
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		cfg:         cfg,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		idle:        newIdleTracker(),
	}
	chromedp.ListenTarget(tabCtx, b.idle.listen)

	setup := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(
			int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), cfg.Scale, cfg.Mobile),
	}
	if cfg.Mobile {
		setup = append(setup, emulation.SetTouchEmulationEnabled(true))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if cfg.CookiesPath != "" {
		if err := b.loadCookies(ctx, cfg.CookiesPath); err != nil {
			logger.Warn("failed to load cookies", "path", cfg.CookiesPath, "error", err)
		}
	}

	logger.Debug("browser session started",
		"headless", cfg.Headless,
		"mobile", cfg.Mobile,
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"scale", cfg.Scale)

	return b, nil
}

// run executes chromedp actions against the session tab while honoring the
// caller's context for cancellation.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// WaitStrategy controls how navigation completion is determined.
type WaitStrategy struct {
	Mode  string        // "load", "dom", "networkidle" or "fixed"
	Delay time.Duration // post-load delay, fixed mode only
}

var fixedWaitPattern = regexp.MustCompile(`^(\d+)s$`)

// ParseWaitStrategy maps the --wait flag value to a strategy. "<N>s" means
// wait for the load event then sleep N seconds; anything unrecognized falls
// back to networkidle.
func ParseWaitStrategy(s string) WaitStrategy {
	switch s {
	case "load":
		return WaitStrategy{Mode: "load"}
	case "dom":
		return WaitStrategy{Mode: "dom"}
	case "networkidle":
		return WaitStrategy{Mode: "networkidle"}
	}
	if m := fixedWaitPattern.FindStringSubmatch(s); m != nil {
		secs, _ := strconv.Atoi(m[1])
		return WaitStrategy{Mode: "fixed", Delay: time.Duration(secs) * time.Second}
	}
	return WaitStrategy{Mode: "networkidle"}
}

// Navigate loads pageURL and waits per the strategy. The navigation timeout
// is a hard bound: its expiry is a fatal error for the URL.
func (b *Browser) Navigate(ctx context.Context, pageURL string, ws WaitStrategy) error {
	timeout := navigateTimeout
	if ws.Mode == "fixed" {
		timeout = fixedWaitNavTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.idle.reset()

	var actions []chromedp.Action
	switch ws.Mode {
	case "dom":
		// Return as soon as the DOM is parsed instead of waiting for the
		// full load event.
		actions = append(actions,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, _, errText, _, err := page.Navigate(pageURL).Do(ctx)
				if err != nil {
					return err
				}
				if errText != "" {
					return fmt.Errorf("page load error: %s", errText)
				}
				return nil
			}),
			waitReadyState("interactive"),
		)
	case "fixed":
		actions = append(actions,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(ws.Delay),
		)
	default:
		actions = append(actions, chromedp.Navigate(pageURL))
	}

	if err := b.run(navCtx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	if ws.Mode == "networkidle" {
		// Part of navigation here, so the idle deadline is hard.
		if err := b.waitIdle(navCtx, timeout); err != nil {
			return fmt.Errorf("navigate %s: wait for network idle: %w", pageURL, err)
		}
	}
	return nil
}

// waitReadyState polls document.readyState until it reaches at least the
// wanted state.
func waitReadyState(want string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return err
			}
			if state == "complete" || state == want {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readyStatePollPeriod):
			}
		}
	})
}

// probeResult mirrors the object literal evaluated in-page.
type probeResult struct {
	ScrollHeight int `json:"scrollHeight"`
	ClientHeight int `json:"clientHeight"`
}

// Probe implements capture.Prober over a live DOM query.
func (b *Browser) Probe(ctx context.Context, selector string) (capture.Metrics, bool, error) {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? {scrollHeight: el.scrollHeight, clientHeight: el.clientHeight} : null;
	})()`, strconv.Quote(selector))

	var res *probeResult
	if err := b.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return capture.Metrics{}, false, err
	}
	if res == nil {
		return capture.Metrics{}, false, nil
	}
	return capture.Metrics{
		ScrollHeight: res.ScrollHeight,
		ClientHeight: res.ClientHeight,
	}, true, nil
}

// Snapshot returns the rendered document's outer HTML and title, used for
// the per-page capture report.
func (b *Browser) Snapshot(ctx context.Context) (html, title string, err error) {
	err = b.run(ctx,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)
	return html, title, err
}

// Close tears down the tab and the browser process.
func (b *Browser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}
