// Package stitch composes an ordered sequence of screenshot tiles into one
// continuous image, cropping away the overlap regions that repeat between
// consecutive captures (sticky headers and footers included).
package stitch

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
)

// ErrNoTiles is returned when a stitch is requested with an empty tile
// list. This is a caller error, not a recoverable runtime condition.
var ErrNoTiles = errors.New("stitch: no tiles to stitch")

// Compose merges tiles top-to-bottom onto a white canvas. All tiles except
// the first lose overlapTop pixels from their top edge, and all except the
// last lose overlapBottom pixels from their bottom edge. The canvas width
// is the maximum tile width; narrower tiles are left-aligned against the
// white fill, never stretched. Each tile contributes at least one pixel of
// height: overlaps larger than a tile are clamped rather than rejected,
// which avoids a degenerate canvas but can leave visible duplication when
// the overlap is misconfigured.
//
// A single tile passes through with its exact dimensions, since it has no
// neighbor to share an overlap with.
func Compose(tiles []image.Image, overlapTop, overlapBottom int) (*image.RGBA, error) {
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}

	width := 0
	height := 0
	for i, im := range tiles {
		if w := im.Bounds().Dx(); w > width {
			width = w
		}
		height += effectiveHeight(im, i, len(tiles), overlapTop, overlapBottom)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := 0
	for i, im := range tiles {
		topCrop := 0
		if i > 0 {
			topCrop = overlapTop
		}
		h := effectiveHeight(im, i, len(tiles), overlapTop, overlapBottom)
		dst := image.Rect(0, y, im.Bounds().Dx(), y+h)
		src := im.Bounds().Min.Add(image.Pt(0, topCrop))
		draw.Draw(canvas, dst, im, src, draw.Over)
		y += h
	}

	return canvas, nil
}

// effectiveHeight is the vertical space tile i occupies in the output after
// cropping, floored at one pixel.
func effectiveHeight(im image.Image, i, n, overlapTop, overlapBottom int) int {
	h := im.Bounds().Dy()
	if i > 0 {
		h -= overlapTop
	}
	if i < n-1 {
		h -= overlapBottom
	}
	if h < 1 {
		h = 1
	}
	return h
}

// Stitch loads the tile files in order, composes them and writes the result
// as a PNG to outPath.
func Stitch(tilePaths []string, outPath string, overlapTop, overlapBottom int) error {
	if len(tilePaths) == 0 {
		return ErrNoTiles
	}

	tiles := make([]image.Image, 0, len(tilePaths))
	for _, p := range tilePaths {
		im, err := loadPNG(p)
		if err != nil {
			return fmt.Errorf("load tile %s: %w", p, err)
		}
		tiles = append(tiles, im)
	}

	canvas, err := Compose(tiles, overlapTop, overlapBottom)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath) //#nosec G304 -- output path is chosen by the caller
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, canvas); err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}
	return f.Close()
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path) //#nosec G304 -- tile paths come from the capture session
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return png.Decode(f)
}
