package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snapscroll/snapscroll/internal/browser"
	"github.com/snapscroll/snapscroll/internal/logger"
	"github.com/snapscroll/snapscroll/pkg/capture"
)

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Diagnose scroll-container detection for a page",
	Long: `Load a page, run scroll-container detection and report the chosen
container's geometry, then attempt one scroll step and report whether the
position moved. Read-only: nothing is captured or written.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	flags := probeCmd.Flags()
	flags.Int("width", 1280, "viewport width")
	flags.Int("height", 1000, "viewport height")
	flags.String("wait", "networkidle", "navigation wait strategy: load|dom|networkidle|<N>s")
	flags.String("selectors", "", "YAML file with custom scroll-container selectors")
	flags.Bool("headless", true, "run headless (use --headless=false to watch)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	wait, _ := flags.GetString("wait")
	selectorsPath, _ := flags.GetString("selectors")
	headless, _ := flags.GetBool("headless")

	selectors := capture.DefaultSelectors()
	if selectorsPath != "" {
		var err error
		selectors, err = capture.LoadSelectors(selectorsPath)
		if err != nil {
			return err
		}
	}

	b, err := browser.New(ctx, browser.Config{
		Headless:       headless,
		ViewportWidth:  width,
		ViewportHeight: height,
		Scale:          1.0,
	})
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	pageURL := args[0]
	if err := b.Navigate(ctx, pageURL, browser.ParseWaitStrategy(wait)); err != nil {
		return err
	}

	container, err := capture.Resolve(ctx, b, selectors)
	if err != nil {
		return err
	}

	surf := b.Surface(container, 0)
	scrollHeight, err := surf.ContentHeight(ctx)
	if err != nil {
		return err
	}
	clientHeight, err := surf.VisibleHeight(ctx)
	if err != nil {
		return err
	}
	scrollTop, err := surf.ScrollOffset(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "URL:           %s\n", pageURL)
	fmt.Fprintf(out, "Container:     %s\n", container.Selector)
	fmt.Fprintf(out, "scrollHeight:  %d\n", scrollHeight)
	fmt.Fprintf(out, "clientHeight:  %d\n", clientHeight)
	fmt.Fprintf(out, "scrollTop:     %d\n", scrollTop)
	fmt.Fprintf(out, "max scroll:    %d\n", scrollHeight-clientHeight)

	// One trial step to confirm the container actually scrolls.
	step := clientHeight / 2
	if step < 1 {
		step = 1
	}
	if err := surf.ScrollBy(ctx, step); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)
	after, err := surf.ScrollOffset(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "after scrollBy(%d): scrollTop = %d\n", step, after)
	if after == scrollTop {
		fmt.Fprintln(out, "result:        container did not move (already at bottom, or wrong container)")
	} else {
		fmt.Fprintln(out, "result:        container scrolls")
	}
	return nil
}
