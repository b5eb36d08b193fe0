package stitch

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// fill creates a solid-color test tile.
func fill(w, h int, c color.Color) *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, c)
		}
	}
	return im
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestCompose_EmptyInput(t *testing.T) {
	_, err := Compose(nil, 0, 0)
	if !errors.Is(err, ErrNoTiles) {
		t.Fatalf("expected ErrNoTiles, got %v", err)
	}
}

func TestCompose_TwoTilesNoOverlap(t *testing.T) {
	out, err := Compose([]image.Image{fill(100, 50, red), fill(100, 50, blue)}, 0, 0)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 100 {
		t.Errorf("expected 100x100 output, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestCompose_TwoTilesWithOverlap(t *testing.T) {
	// Two 100x100 tiles, overlapTop=20 overlapBottom=20: the first tile
	// loses its bottom crop, the second its top crop -> 80 + 80 = 160.
	out, err := Compose([]image.Image{fill(100, 100, red), fill(100, 100, blue)}, 20, 20)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 160 {
		t.Errorf("expected 100x160 output, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestCompose_SingleTilePassesThrough(t *testing.T) {
	out, err := Compose([]image.Image{fill(120, 90, red)}, 30, 30)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	// A single tile has no neighbor, so no crop is applied at all.
	if got := out.Bounds(); got.Dx() != 120 || got.Dy() != 90 {
		t.Errorf("expected 120x90 output, got %dx%d", got.Dx(), got.Dy())
	}
	if got := out.At(60, 45); !sameColor(got, red) {
		t.Errorf("expected tile pixels preserved, got %v", got)
	}
}

func TestCompose_OverlapLargerThanTileClampsToOnePixel(t *testing.T) {
	// 100x10 tiles with 50px crops on both sides would go negative; each
	// tile is floored at one pixel instead.
	out, err := Compose([]image.Image{fill(100, 10, red), fill(100, 10, blue)}, 50, 50)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 2 {
		t.Errorf("expected 100x2 output, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestCompose_NarrowTilesLeftAlignedOnWhite(t *testing.T) {
	out, err := Compose([]image.Image{fill(50, 10, red), fill(100, 10, blue)}, 0, 0)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 20 {
		t.Fatalf("expected 100x20 output, got %dx%d", got.Dx(), got.Dy())
	}
	if got := out.At(25, 5); !sameColor(got, red) {
		t.Errorf("narrow tile should be left-aligned, got %v at (25,5)", got)
	}
	if got := out.At(75, 5); !sameColor(got, color.White) {
		t.Errorf("padding right of a narrow tile should be white, got %v", got)
	}
}

func TestCompose_CropRemovesTopOfLaterTiles(t *testing.T) {
	out, err := Compose([]image.Image{fill(100, 100, red), fill(100, 100, blue)}, 20, 0)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Bounds(); got.Dy() != 180 {
		t.Fatalf("expected height 180, got %d", got.Dy())
	}
	if got := out.At(50, 50); !sameColor(got, red) {
		t.Errorf("expected first tile content at y=50, got %v", got)
	}
	if got := out.At(50, 150); !sameColor(got, blue) {
		t.Errorf("expected second tile content at y=150, got %v", got)
	}
}

func TestStitch_RoundTripThroughFiles(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 2)
	for i, im := range []*image.RGBA{fill(100, 50, red), fill(100, 50, blue)} {
		paths[i] = filepath.Join(dir, "tile_"+string(rune('a'+i))+".png")
		f, err := os.Create(paths[i])
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, im); err != nil {
			t.Fatal(err)
		}
		_ = f.Close()
	}

	outPath := filepath.Join(dir, "stitched.png")
	if err := Stitch(paths, outPath, 0, 0); err != nil {
		t.Fatalf("Stitch() error = %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	out, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode stitched image: %v", err)
	}
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 100 {
		t.Errorf("expected 100x100 stitched image, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestStitch_EmptyInput(t *testing.T) {
	err := Stitch(nil, filepath.Join(t.TempDir(), "out.png"), 0, 0)
	if !errors.Is(err, ErrNoTiles) {
		t.Fatalf("expected ErrNoTiles, got %v", err)
	}
}

func TestStitch_MissingTileFile(t *testing.T) {
	err := Stitch([]string{filepath.Join(t.TempDir(), "nope.png")}, "out.png", 0, 0)
	if err == nil {
		t.Fatal("expected error for a missing tile file")
	}
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar == br && ag == bg && ab == bb
}
