package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/snapscroll/snapscroll/internal/logger"
)

// cookieRecord matches the common exported-cookies JSON shape (Playwright
// and browser-extension exports share these field names).
type cookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// loadCookies reads a cookies.json file and applies every record to the
// session before navigation, so authenticated pages render as logged in.
func (b *Browser) loadCookies(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads a user-specified cookie file
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}

	var jar []cookieRecord
	if err := json.Unmarshal(raw, &jar); err != nil {
		return fmt.Errorf("parse cookies: %w", err)
	}

	params := make([]*network.CookieParam, 0, len(jar))
	for _, c := range jar {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	if err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	})); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}

	logger.Debug("cookies loaded", "path", path, "count", len(params))
	return nil
}
