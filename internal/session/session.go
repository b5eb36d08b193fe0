// Package session owns the on-disk layout of a capture run: the timestamped
// session directory, a sanitized sub-directory per URL, and the JSON
// manifests describing the run and each captured page.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const dirStampLayout = "2006-01-02_15-04-05"

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	unsafeChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// SafeDirName converts a URL into a filesystem-safe directory name: the
// scheme prefix is stripped, every run of characters outside [A-Za-z0-9._-]
// collapses to a single underscore, and the result is truncated to 120
// characters. Deterministic but not collision-free; two distinct URLs
// mapping to the same name in one session is an accepted rare edge case.
func SafeDirName(url string) string {
	name := schemePrefix.ReplaceAllString(url, "")
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

// TileRef is one tile entry in the session manifest.
type TileRef struct {
	URL    string `json:"url"`
	Tile   string `json:"tile"`
	Y      int    `json:"y"`
	Height int    `json:"height"`
}

// Meta is the session-level manifest written to meta.json at run end.
type Meta struct {
	URLs       []string  `json:"urls"`
	StartedAt  int64     `json:"started_at"`
	FinishedAt int64     `json:"finished_at"`
	Tiles      []TileRef `json:"tiles"`
}

// Viewport records the capture viewport dimensions.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PageMeta is the per-URL manifest written to page_meta.json once all tiles
// for that URL are captured. TotalHeight is the content height capped at
// the configured maximum; Viewport, Scale and Wait echo the values that
// drove the capture.
type PageMeta struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	TotalHeight int      `json:"total_height"`
	Viewport    Viewport `json:"viewport"`
	Scale       float64  `json:"scale"`
	Wait        string   `json:"wait"`
	LinkCount   int      `json:"link_count,omitempty"`
	Tiles       []string `json:"tiles"`
}

// Session is one capture run across one or more URLs. It accumulates tile
// records as pages are processed and is finalized exactly once.
type Session struct {
	Dir  string
	meta Meta
}

// New creates the timestamped session directory under outDir and starts
// the run manifest.
func New(outDir string, urls []string, now time.Time) (*Session, error) {
	dir := filepath.Join(outDir, now.Format(dirStampLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Session{
		Dir: dir,
		meta: Meta{
			URLs:      urls,
			StartedAt: now.Unix(),
			Tiles:     []TileRef{},
		},
	}, nil
}

// PageDirs creates and returns the sanitized per-URL directory and its
// tiles sub-directory.
func (s *Session) PageDirs(url string) (pageDir, tilesDir string, err error) {
	pageDir = filepath.Join(s.Dir, SafeDirName(url))
	tilesDir = filepath.Join(pageDir, "tiles")
	if err := os.MkdirAll(tilesDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create page dirs: %w", err)
	}
	return pageDir, tilesDir, nil
}

// AddTile appends a tile record to the session manifest.
func (s *Session) AddTile(ref TileRef) {
	s.meta.Tiles = append(s.meta.Tiles, ref)
}

// WritePageMeta writes the per-URL manifest into pageDir.
func (s *Session) WritePageMeta(pageDir string, pm PageMeta) error {
	return writeJSON(filepath.Join(pageDir, "page_meta.json"), pm)
}

// Finish stamps the end time and writes the session manifest. Tiles from
// URLs that failed part-way remain in the manifest as partial artifacts.
func (s *Session) Finish(now time.Time) error {
	s.meta.FinishedAt = now.Unix()
	return writeJSON(filepath.Join(s.Dir, "meta.json"), s.meta)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
