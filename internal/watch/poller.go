// Package watch drives the fixed-interval refresh used by the live
// leaderboard and scores views.
package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval matches the dashboard's leaderboard refresh cadence.
const DefaultInterval = 2 * time.Minute

// Poller re-runs a refresh on a fixed wall-clock interval until its
// context is cancelled. Each tick fires independently: a failed refresh
// does not change the schedule and there is no backoff.
type Poller struct {
	interval time.Duration
	tick     func(ctx context.Context)
}

// New creates a Poller. A non-positive interval falls back to
// DefaultInterval.
func New(interval time.Duration, tick func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{interval: interval, tick: tick}
}

// Run executes one refresh immediately, then one per interval. It returns
// once ctx is cancelled; no further refresh fires after that.
func (p *Poller) Run(ctx context.Context) {
	log.Info().Dur("interval", p.interval).Msg("Starting refresh loop")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping refresh loop")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}
