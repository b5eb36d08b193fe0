package capture

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options control one page capture.
type Options struct {
	// ViewportWidth and ViewportHeight are the browser viewport dimensions.
	// ViewportHeight is also the nominal tile height.
	ViewportWidth  int `validate:"min=100,max=4096"`
	ViewportHeight int `validate:"min=100,max=10000"`

	// Scale is the device scale factor applied before capture.
	Scale float64 `validate:"gt=0,lte=5"`

	// Overlap is the vertical overlap in pixels between consecutive tiles.
	Overlap int `validate:"min=0"`

	// SettleDelay is the fixed per-step delay after each scroll, on top of
	// the network-idle wait.
	SettleDelay time.Duration `validate:"min=0"`

	// CapHeight bounds the total scrollable height recorded for a page,
	// guarding against runaway infinite-scroll pages.
	CapHeight int `validate:"min=1"`

	// MaxTiles is the safety cap on tiles per page. Reaching it stops the
	// loop with a warning; the partial tile set is kept.
	MaxTiles int `validate:"min=1"`
}

// DefaultOptions mirror the CLI flag defaults.
func DefaultOptions() Options {
	return Options{
		ViewportWidth:  1280,
		ViewportHeight: 1000,
		Scale:          1.0,
		Overlap:        80,
		SettleDelay:    350 * time.Millisecond,
		CapHeight:      50000,
		MaxTiles:       150,
	}
}

// Step returns the scroll delta per capture step, floored at one pixel so a
// misconfigured overlap can never stall the loop.
func (o Options) Step() int {
	step := o.ViewportHeight - o.Overlap
	if step < 1 {
		step = 1
	}
	return step
}

// Validate checks the options against their declared constraints.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid capture options: %w", err)
	}
	return nil
}
