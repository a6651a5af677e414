package stubserver

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Quota enforces the daily submission allowance. The reset boundary is a
// cron schedule so deployments can move it off midnight without code
// changes.
type Quota struct {
	sched cron.Schedule
	max   int
}

// NewQuota parses the cron expression and caps submissions per window.
func NewQuota(spec string, max int) (*Quota, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}
	if max <= 0 {
		return nil, fmt.Errorf("max submissions must be positive, got %d", max)
	}
	return &Quota{sched: sched, max: max}, nil
}

// Max is the per-window submission cap.
func (q *Quota) Max() int {
	return q.max
}

// NextReset is the next schedule activation after now.
func (q *Quota) NextReset(now time.Time) time.Time {
	return q.sched.Next(now)
}

// WindowStart is the most recent activation at or before now; submissions
// since then count against the quota. Schedules that have not fired in the
// last two days fall back to a 48h window.
func (q *Quota) WindowStart(now time.Time) time.Time {
	t := now.Add(-48 * time.Hour)
	start := t
	for {
		next := q.sched.Next(t)
		if next.After(now) {
			return start
		}
		start = next
		t = next
	}
}
