package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeSurface is an in-memory scroll surface. ScrollBy advances the offset
// up to maxTop, mimicking a scrollbar that stops at the content end.
type fakeSurface struct {
	contentHeight int
	visibleHeight int
	top           int
	maxTop        int

	shots       []string
	settleCalls int
	failShotAt  int // 1-based shot index that errors, 0 = never
}

func (f *fakeSurface) ContentHeight(context.Context) (int, error) { return f.contentHeight, nil }
func (f *fakeSurface) VisibleHeight(context.Context) (int, error) { return f.visibleHeight, nil }
func (f *fakeSurface) ScrollOffset(context.Context) (int, error)  { return f.top, nil }

func (f *fakeSurface) ScrollBy(_ context.Context, delta int) error {
	f.top += delta
	if f.top > f.maxTop {
		f.top = f.maxTop
	}
	return nil
}

func (f *fakeSurface) WaitSettled(context.Context) error {
	f.settleCalls++
	return nil
}

func (f *fakeSurface) Screenshot(_ context.Context, path string) error {
	if f.failShotAt > 0 && len(f.shots)+1 == f.failShotAt {
		return errors.New("page crashed")
	}
	f.shots = append(f.shots, path)
	return nil
}

func testOptions(viewport, overlap, maxTiles int) Options {
	o := DefaultOptions()
	o.ViewportHeight = viewport
	o.Overlap = overlap
	o.MaxTiles = maxTiles
	return o
}

// --- Run ---

func TestRun_StopsAtStagnation(t *testing.T) {
	surf := &fakeSurface{contentHeight: 2000, visibleHeight: 1000, maxTop: 1000}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 0, 150), t.TempDir(), "https://example.com")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Seed at 0, one step to 1000, then the next step does not move.
	if len(tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(tiles))
	}
	if tiles[0].Y != 0 || tiles[1].Y != 1000 {
		t.Errorf("unexpected tile offsets: %d, %d", tiles[0].Y, tiles[1].Y)
	}
	// No duplicate tile after stagnation was detected.
	if len(surf.shots) != 2 {
		t.Errorf("expected 2 screenshots, got %d", len(surf.shots))
	}
}

func TestRun_TileCountMatchesContentHeight(t *testing.T) {
	// content 3000, viewport 1000, overlap 200 -> step 800.
	// Offsets: 0, 800, 1600, 2000(max), then stagnation.
	surf := &fakeSurface{contentHeight: 3000, visibleHeight: 1000, maxTop: 2000}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 200, 150), t.TempDir(), "u")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := 4 // ceil(3000 / 800), the last tile being the clamped one
	if len(tiles) != want {
		t.Fatalf("expected %d tiles, got %d", want, len(tiles))
	}
	for i := 1; i < len(tiles); i++ {
		if tiles[i].Y <= tiles[i-1].Y {
			t.Errorf("tile offsets not strictly increasing: %d then %d", tiles[i-1].Y, tiles[i].Y)
		}
	}
}

func TestRun_SeedsTileAtNonZeroStart(t *testing.T) {
	surf := &fakeSurface{contentHeight: 2000, visibleHeight: 1000, top: 300, maxTop: 1000}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 0, 150), t.TempDir(), "u")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tiles[0].Y != 300 {
		t.Errorf("seed tile should capture the current offset, got y=%d", tiles[0].Y)
	}
}

func TestRun_MaxTilesCap(t *testing.T) {
	surf := &fakeSurface{contentHeight: 1 << 30, visibleHeight: 1000, maxTop: 1 << 30}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 0, 5), t.TempDir(), "u")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(tiles) != 5 {
		t.Errorf("expected capture to stop at the cap of 5 tiles, got %d", len(tiles))
	}
}

func TestRun_ScreenshotFailureKeepsEarlierTiles(t *testing.T) {
	surf := &fakeSurface{contentHeight: 10000, visibleHeight: 1000, maxTop: 9000, failShotAt: 3}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 0, 150), t.TempDir(), "u")
	if err == nil {
		t.Fatal("expected screenshot failure to propagate")
	}
	if len(tiles) != 2 {
		t.Errorf("expected the 2 tiles captured before the failure, got %d", len(tiles))
	}
}

func TestRun_TileNumberingContiguous(t *testing.T) {
	dir := t.TempDir()
	surf := &fakeSurface{contentHeight: 3000, visibleHeight: 1000, maxTop: 2000}

	tiles, err := Run(context.Background(), surf, testOptions(1000, 0, 150), dir, "u")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"tile_0001.png", "tile_0002.png", "tile_0003.png"}
	if len(tiles) != len(want) {
		t.Fatalf("expected %d tiles, got %d", len(want), len(tiles))
	}
	for i, tile := range tiles {
		if got := filepath.Base(tile.Path); got != want[i] {
			t.Errorf("tile %d path = %q, want %q", i, got, want[i])
		}
	}
}

// --- Resolve ---

type fakeProber struct {
	metrics map[string]Metrics
	probed  []string
}

func (p *fakeProber) Probe(_ context.Context, selector string) (Metrics, bool, error) {
	p.probed = append(p.probed, selector)
	m, ok := p.metrics[selector]
	return m, ok, nil
}

func TestResolve_FirstScrollableWins(t *testing.T) {
	p := &fakeProber{metrics: map[string]Metrics{
		".a": {ScrollHeight: 500, ClientHeight: 500},  // present but not scrollable
		".b": {ScrollHeight: 2000, ClientHeight: 800}, // scrollable
		".c": {ScrollHeight: 3000, ClientHeight: 100}, // also scrollable, but later
	}}

	c, err := Resolve(context.Background(), p, []string{".a", ".b", ".c"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if c.Selector != ".b" {
		t.Errorf("expected .b, got %q", c.Selector)
	}
	if len(p.probed) != 2 {
		t.Errorf("expected probing to stop at the first match, probed %v", p.probed)
	}
}

func TestResolve_FallsBackToWindow(t *testing.T) {
	p := &fakeProber{metrics: map[string]Metrics{
		".a": {ScrollHeight: 500, ClientHeight: 500},
	}}

	c, err := Resolve(context.Background(), p, []string{".a", ".missing"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !c.IsWindow() {
		t.Errorf("expected window fallback, got %q", c.Selector)
	}
	if c.Selector != WindowSelector {
		t.Errorf("expected selector label %q, got %q", WindowSelector, c.Selector)
	}
}

func TestDefaultSelectors_MostSpecificFirst(t *testing.T) {
	sels := DefaultSelectors()
	if len(sels) != 8 {
		t.Fatalf("expected 8 default selectors, got %d", len(sels))
	}
	if sels[0] != ".bear-web-x-container.catalogue-opened.docx-in-wiki" {
		t.Errorf("most specific selector should come first, got %q", sels[0])
	}
	if sels[len(sels)-1] != ".content-container" {
		t.Errorf("generic fallback should come last, got %q", sels[len(sels)-1])
	}
}

// --- LoadSelectors ---

func TestLoadSelectors_KeyedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	content := "selectors:\n  - \".custom-scroll\"\n  - \"main\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sels, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors() error = %v", err)
	}
	if len(sels) != 2 || sels[0] != ".custom-scroll" {
		t.Errorf("unexpected selectors: %v", sels)
	}
}

func TestLoadSelectors_BareList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(path, []byte("- \".only\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sels, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors() error = %v", err)
	}
	if len(sels) != 1 || sels[0] != ".only" {
		t.Errorf("unexpected selectors: %v", sels)
	}
}

func TestLoadSelectors_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSelectors(path); err == nil {
		t.Error("expected error for a file with no selectors")
	}
}

// --- Options ---

func TestOptions_StepFloor(t *testing.T) {
	tests := []struct {
		viewport, overlap, want int
	}{
		{1000, 80, 920},
		{1000, 0, 1000},
		{1000, 1000, 1},
		{1000, 5000, 1},
	}
	for _, tt := range tests {
		o := Options{ViewportHeight: tt.viewport, Overlap: tt.overlap}
		if got := o.Step(); got != tt.want {
			t.Errorf("Step(viewport=%d, overlap=%d) = %d, want %d", tt.viewport, tt.overlap, got, tt.want)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}

	bad := DefaultOptions()
	bad.ViewportWidth = 10
	if err := bad.Validate(); err == nil {
		t.Error("expected validation failure for tiny viewport width")
	}

	bad = DefaultOptions()
	bad.Overlap = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected validation failure for negative overlap")
	}

	bad = DefaultOptions()
	bad.SettleDelay = -time.Second
	if err := bad.Validate(); err == nil {
		t.Error("expected validation failure for negative settle delay")
	}
}
