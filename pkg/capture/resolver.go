package capture

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snapscroll/snapscroll/internal/logger"
)

// Metrics holds the scroll geometry of a probed element.
type Metrics struct {
	ScrollHeight int
	ClientHeight int
}

// Prober answers read-only scroll-geometry queries about the first element
// matching a CSS selector on a live page.
type Prober interface {
	// Probe returns the metrics of the first element matching selector.
	// The second return is false when no element matches.
	Probe(ctx context.Context, selector string) (Metrics, bool, error)
}

// DefaultSelectors is the built-in candidate list for scroll-container
// detection, most specific document-platform selectors first and generic
// fallbacks last.
func DefaultSelectors() []string {
	return []string{
		".bear-web-x-container.catalogue-opened.docx-in-wiki",
		".bear-web-x-container",
		".docx-content",
		".wiki-content",
		"[role='main']",
		"main",
		".scrollable-container",
		".content-container",
	}
}

// selectorFile is the YAML shape accepted by LoadSelectors. Both a bare
// list and a document with a top-level "selectors" key are supported.
type selectorFile struct {
	Selectors []string `yaml:"selectors"`
}

// LoadSelectors reads a custom candidate selector list from a YAML file.
func LoadSelectors(path string) ([]string, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads a user-specified selector file
	if err != nil {
		return nil, fmt.Errorf("read selectors: %w", err)
	}

	var f selectorFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		var list []string
		if listErr := yaml.Unmarshal(raw, &list); listErr != nil {
			return nil, fmt.Errorf("parse selectors: %w", err)
		}
		f.Selectors = list
	}

	if len(f.Selectors) == 0 {
		return nil, fmt.Errorf("parse selectors: %s contains no selectors", path)
	}
	return f.Selectors, nil
}

// Resolve probes the candidate selectors in order and picks the first whose
// content height strictly exceeds its visible height. When no candidate
// qualifies it falls back to the root scrolling context; absence of a
// scrollable element is a normal outcome, not a failure.
func Resolve(ctx context.Context, p Prober, selectors []string) (Container, error) {
	for _, sel := range selectors {
		m, found, err := p.Probe(ctx, sel)
		if err != nil {
			return Container{}, fmt.Errorf("probe %q: %w", sel, err)
		}
		if !found {
			continue
		}
		if m.ScrollHeight > m.ClientHeight {
			logger.Info("found scroll container",
				"selector", sel,
				"scroll_height", m.ScrollHeight,
				"client_height", m.ClientHeight)
			return Container{Selector: sel}, nil
		}
	}
	return Container{Selector: WindowSelector}, nil
}
