package capture

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/snapscroll/snapscroll/internal/logger"
)

// Run drives surf through successive scroll steps and captures one tile per
// stable position, writing tile_0001.png, tile_0002.png, ... into tilesDir.
//
// The first tile is captured unconditionally at the current offset, seeding
// the top of the page even if the container starts non-zero. The loop ends
// when a scroll attempt leaves the offset unchanged (content end reached)
// or when opts.MaxTiles is hit. Stagnation mid-content on pages that report
// a momentary no-op scroll will end the capture early; position-delta
// stagnation is still the more robust signal than a precomputed maximum,
// because lazily loaded content changes the total height mid-capture.
//
// Screenshot failures abort the capture; tiles already written stay on disk
// and are returned alongside the error.
func Run(ctx context.Context, surf Surface, opts Options, tilesDir, pageURL string) ([]Tile, error) {
	var tiles []Tile

	snap := func(y int) error {
		n := len(tiles) + 1
		path := filepath.Join(tilesDir, fmt.Sprintf("tile_%04d.png", n))
		if err := surf.Screenshot(ctx, path); err != nil {
			return fmt.Errorf("capture tile %d: %w", n, err)
		}
		logger.Info("captured tile", "n", n, "y", y)
		tiles = append(tiles, Tile{URL: pageURL, Path: path, Y: y, Height: opts.ViewportHeight})
		return nil
	}

	pos, err := surf.ScrollOffset(ctx)
	if err != nil {
		return nil, fmt.Errorf("read scroll offset: %w", err)
	}
	if err := snap(pos); err != nil {
		return tiles, err
	}

	step := opts.Step()
	prev := pos
	for len(tiles) < opts.MaxTiles {
		if err := surf.ScrollBy(ctx, step); err != nil {
			return tiles, fmt.Errorf("scroll by %d: %w", step, err)
		}
		if err := surf.WaitSettled(ctx); err != nil {
			return tiles, err
		}

		pos, err = surf.ScrollOffset(ctx)
		if err != nil {
			return tiles, fmt.Errorf("read scroll offset: %w", err)
		}
		if pos == prev {
			logger.Info("scroll position unchanged, reached the bottom", "y", pos)
			return tiles, nil
		}

		if err := snap(pos); err != nil {
			return tiles, err
		}
		prev = pos
	}

	logger.Warn("reached max tiles limit, capture might be incomplete", "max_tiles", opts.MaxTiles)
	return tiles, nil
}
