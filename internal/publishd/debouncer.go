package publishd

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BuildRequest asks the daemon for one rebuild.
type BuildRequest struct {
	Trigger string // poll|webhook|manual|startup
	Count   int    // coalesced request count
}

// DebouncerConfig tunes request coalescing.
type DebouncerConfig struct {
	QuietWindow time.Duration // emit after this much request silence
	MaxDelay    time.Duration // but never postpone longer than this
}

// Debouncer coalesces bursts of build requests into single BuildRequests:
// a build fires after QuietWindow without new requests, and a burst cannot
// postpone the build past MaxDelay from its first request.
//
// It is safe for concurrent Request calls; Run is a single goroutine.
type Debouncer struct {
	cfg DebouncerConfig
	out chan BuildRequest

	mu             sync.Mutex
	pending        bool
	firstRequestAt time.Time
	lastRequestAt  time.Time
	lastTrigger    string
	requestCount   int
}

// NewDebouncer validates cfg and constructs a Debouncer.
func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, fmt.Errorf("quiet window must be > 0")
	}
	if cfg.MaxDelay < cfg.QuietWindow {
		return nil, fmt.Errorf("max delay must be >= quiet window")
	}
	return &Debouncer{cfg: cfg, out: make(chan BuildRequest, 1)}, nil
}

// Builds returns the channel coalesced build requests are emitted on.
func (d *Debouncer) Builds() <-chan BuildRequest {
	return d.out
}

// Request records a build trigger.
func (d *Debouncer) Request(trigger string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.pending {
		d.pending = true
		d.firstRequestAt = now
		d.requestCount = 0
	}
	d.lastRequestAt = now
	d.lastTrigger = trigger
	d.requestCount++
}

// Run evaluates the pending state periodically and emits coalesced requests
// until ctx is done.
func (d *Debouncer) Run(ctx context.Context) {
	tick := d.cfg.QuietWindow / 4
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if req, ok := d.take(); ok {
				select {
				case d.out <- req:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// take returns the coalesced request when the quiet window has elapsed or the
// max delay is exhausted.
func (d *Debouncer) take() (BuildRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return BuildRequest{}, false
	}
	now := time.Now()
	quietOver := now.Sub(d.lastRequestAt) >= d.cfg.QuietWindow
	delayExhausted := now.Sub(d.firstRequestAt) >= d.cfg.MaxDelay
	if !quietOver && !delayExhausted {
		return BuildRequest{}, false
	}

	d.pending = false
	return BuildRequest{Trigger: d.lastTrigger, Count: d.requestCount}, true
}
