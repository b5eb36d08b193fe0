package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snapscroll/snapscroll/internal/browser"
	"github.com/snapscroll/snapscroll/internal/logger"
	"github.com/snapscroll/snapscroll/internal/session"
	"github.com/snapscroll/snapscroll/pkg/capture"
	"github.com/snapscroll/snapscroll/pkg/stitch"
)

var snapCmd = &cobra.Command{
	Use:   "snap <url>...",
	Short: "Capture one or more pages as scroll tiles",
	Long: `Capture each URL as a sequence of viewport-sized screenshot tiles.

The page's scroll container is detected by probing a prioritized selector
list; each scroll step waits for the network to go idle so lazily-loaded
content is rendered before its tile is captured. Capture stops when a
scroll attempt no longer moves the container.

Examples:
  # Basic capture
  snapscroll snap "https://example.com/long-doc"

  # Stitch into one image, trimming a sticky header
  snapscroll snap --stitch --sticky-top 64 "https://example.com/doc"

  # Authenticated capture with exported cookies
  snapscroll snap --cookies cookies.json "https://example.com/private"

  # Slow page: wait 5 seconds after load instead of network idle
  snapscroll snap --wait 5s "https://example.com/heavy-spa"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSnap,
}

func init() {
	rootCmd.AddCommand(snapCmd)

	flags := snapCmd.Flags()

	// Output settings
	flags.StringP("out", "o", "out", "root output directory")
	flags.Bool("stitch", false, "stitch all tiles into one long image per URL")

	// Viewport settings
	flags.Int("width", 1280, "viewport width")
	flags.Int("height", 1000, "viewport height (tile height baseline)")
	flags.Float64("scale", 1.0, "device scale factor, e.g. 1.0 / 2.0")

	// Wait / scroll settings
	flags.String("wait", "networkidle", "navigation wait strategy: load|dom|networkidle|<N>s")
	flags.Int("scroll-delay-ms", 350, "delay after each scroll (ms)")
	flags.Int("tile-overlap", 80, "overlap pixels between tiles to avoid gaps")
	flags.Int("cap-height", 50000, "max page scroll height to record")
	flags.Int("max-tiles", 150, "safety cap on tiles per page")
	flags.String("selectors", "", "YAML file with custom scroll-container selectors")

	// Stitching settings
	flags.Int("sticky-top", 0, "pixels to crop from top of tiles 2..N when stitching")
	flags.Int("sticky-bottom", 0, "pixels to crop from bottom of tiles 1..N-1 when stitching")

	// Browser settings
	flags.String("cookies", "", "path to cookies.json (exported format)")
	flags.String("user-data-dir", "", "browser user data dir for persistent login")
	flags.Bool("mobile", false, "emulate a mobile-like viewport and touch UA")
	flags.Bool("headless", true, "run headless (use --headless=false to watch)")
}

func runSnap(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()
	out, _ := flags.GetString("out")
	doStitch, _ := flags.GetBool("stitch")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	scale, _ := flags.GetFloat64("scale")
	wait, _ := flags.GetString("wait")
	scrollDelayMs, _ := flags.GetInt("scroll-delay-ms")
	overlap, _ := flags.GetInt("tile-overlap")
	capHeight, _ := flags.GetInt("cap-height")
	maxTiles, _ := flags.GetInt("max-tiles")
	selectorsPath, _ := flags.GetString("selectors")
	stickyTop, _ := flags.GetInt("sticky-top")
	stickyBottom, _ := flags.GetInt("sticky-bottom")
	cookiesPath, _ := flags.GetString("cookies")
	userDataDir, _ := flags.GetString("user-data-dir")
	mobile, _ := flags.GetBool("mobile")
	headless, _ := flags.GetBool("headless")

	opts := capture.Options{
		ViewportWidth:  width,
		ViewportHeight: height,
		Scale:          scale,
		Overlap:        overlap,
		SettleDelay:    time.Duration(scrollDelayMs) * time.Millisecond,
		CapHeight:      capHeight,
		MaxTiles:       maxTiles,
	}
	if err := opts.Validate(); err != nil {
		logger.Error("invalid options", "error", err)
		return err
	}

	selectors := capture.DefaultSelectors()
	if selectorsPath != "" {
		var err error
		selectors, err = capture.LoadSelectors(selectorsPath)
		if err != nil {
			logger.Error("failed to load selectors", "path", selectorsPath, "error", err)
			return err
		}
		logger.Debug("custom selectors loaded", "path", selectorsPath, "count", len(selectors))
	}

	sess, err := session.New(out, args, time.Now())
	if err != nil {
		logger.Error("failed to create session directory", "error", err)
		return err
	}
	logger.Info("session started", "dir", sess.Dir, "urls", len(args))

	b, err := browser.New(ctx, browser.Config{
		Headless:       headless,
		Mobile:         mobile,
		UserDataDir:    userDataDir,
		CookiesPath:    cookiesPath,
		ViewportWidth:  width,
		ViewportHeight: height,
		Scale:          scale,
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		return err
	}
	defer func() { _ = b.Close() }()

	ws := browser.ParseWaitStrategy(wait)

	var failed int
	for _, u := range args {
		logger.Info("capturing page", "url", u)
		if err := captureURL(ctx, b, sess, u, ws, wait, opts, selectors, doStitch, stickyTop, stickyBottom); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("page capture failed", "url", u, "error", err)
			failed++
		}
	}

	if err := sess.Finish(time.Now()); err != nil {
		logger.Error("failed to write session manifest", "error", err)
		return err
	}
	logger.Info("done", "dir", sess.Dir, "captured", len(args)-failed, "failed", failed)

	if failed == len(args) {
		return fmt.Errorf("all %d page(s) failed", failed)
	}
	return nil
}

// captureURL processes one page: navigate, resolve the scroll container,
// run the capture loop, write the page manifest and optionally stitch.
// A hard failure aborts only this URL; tiles already on disk are kept.
func captureURL(ctx context.Context, b *browser.Browser, sess *session.Session, pageURL string,
	ws browser.WaitStrategy, waitLabel string, opts capture.Options, selectors []string,
	doStitch bool, stickyTop, stickyBottom int) error {

	pageDir, tilesDir, err := sess.PageDirs(pageURL)
	if err != nil {
		return err
	}

	if err := b.Navigate(ctx, pageURL, ws); err != nil {
		return err
	}

	container, err := capture.Resolve(ctx, b, selectors)
	if err != nil {
		return err
	}
	logger.Info("using scroll container", "selector", container.Selector)

	surf := b.Surface(container, opts.SettleDelay)

	totalHeight, err := surf.ContentHeight(ctx)
	if err != nil {
		return err
	}
	if totalHeight > opts.CapHeight {
		logger.Warn("content height exceeds cap", "height", totalHeight, "cap", opts.CapHeight)
		totalHeight = opts.CapHeight
	}
	logger.Debug("page geometry", "total_height", totalHeight, "step", opts.Step())

	tiles, runErr := capture.Run(ctx, surf, opts, tilesDir, pageURL)
	for _, t := range tiles {
		sess.AddTile(session.TileRef{URL: t.URL, Tile: t.Path, Y: t.Y, Height: t.Height})
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("capture complete", "url", pageURL, "tiles", len(tiles))

	title, linkCount := pageReport(ctx, b)

	tilePaths := make([]string, len(tiles))
	for i, t := range tiles {
		tilePaths[i] = t.Path
	}

	pm := session.PageMeta{
		URL:         pageURL,
		Title:       title,
		TotalHeight: totalHeight,
		Viewport:    session.Viewport{Width: opts.ViewportWidth, Height: opts.ViewportHeight},
		Scale:       opts.Scale,
		Wait:        waitLabel,
		LinkCount:   linkCount,
		Tiles:       tilePaths,
	}
	if err := sess.WritePageMeta(pageDir, pm); err != nil {
		return err
	}

	if doStitch && len(tilePaths) > 0 {
		stitchedPath := filepath.Join(pageDir, "stitched.png")
		if err := stitch.Stitch(tilePaths, stitchedPath, stickyTop, stickyBottom); err != nil {
			return fmt.Errorf("stitch %s: %w", pageURL, err)
		}
		if fi, err := os.Stat(stitchedPath); err == nil {
			logger.Info("stitched", "path", stitchedPath, "size", humanize.Bytes(uint64(fi.Size())))
		}
	}

	return nil
}

// pageReport pulls the rendered document's title and link count for the
// page manifest. Purely informational: any failure here degrades to empty
// values rather than failing the capture.
func pageReport(ctx context.Context, b *browser.Browser) (title string, linkCount int) {
	html, title, err := b.Snapshot(ctx)
	if err != nil {
		logger.Warn("failed to snapshot page for report", "error", err)
		return "", 0
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("failed to parse page for report", "error", err)
		return title, 0
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	linkCount = doc.Find("a[href]").Length()
	return title, linkCount
}
