package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// idleQuietWindow is how long the network must stay quiet before the page
// counts as settled, matching the browser's own networkIdle heuristic.
const idleQuietWindow = 500 * time.Millisecond

// errIdleTimeout reports that the bounded network-idle wait expired. It is
// advisory for scroll settling and hard only during networkidle navigation.
var errIdleTimeout = errors.New("browser: network idle wait timed out")

// idleTracker counts in-flight network requests from CDP events. Long-lived
// streams (websockets, server-sent events) can pin the count above zero; in
// that case waits simply run into their timeout, which callers treat as
// "probably settled enough".
type idleTracker struct {
	mu         sync.Mutex
	inflight   map[network.RequestID]struct{}
	lastChange time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight:   make(map[network.RequestID]struct{}),
		lastChange: time.Now(),
	}
}

// listen consumes CDP target events. Registered via chromedp.ListenTarget.
func (t *idleTracker) listen(ev any) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight[ev.RequestID] = struct{}{}
		t.lastChange = time.Now()
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.finish(ev.RequestID)
	case *network.EventLoadingFailed:
		t.finish(ev.RequestID)
	}
}

func (t *idleTracker) finish(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastChange = time.Now()
	t.mu.Unlock()
}

// reset drops requests left over from a previous page.
func (t *idleTracker) reset() {
	t.mu.Lock()
	t.inflight = make(map[network.RequestID]struct{})
	t.lastChange = time.Now()
	t.mu.Unlock()
}

// state returns the in-flight count and how long the tracker has been
// unchanged.
func (t *idleTracker) state() (int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), time.Since(t.lastChange)
}

// waitIdle blocks until the network has been quiet for idleQuietWindow or
// timeout elapses, returning errIdleTimeout in the latter case.
func (b *Browser) waitIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if n, quiet := b.idle.state(); n == 0 && quiet >= idleQuietWindow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errIdleTimeout
		case <-tick.C:
		}
	}
}
