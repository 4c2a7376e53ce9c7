package sensor

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// UpdateTimer gates how often a watch is re-evaluated. The first call
// always fires; later calls fire only once the scan interval has
// elapsed since the last firing.
type UpdateTimer struct {
	clock    clockwork.Clock
	interval time.Duration
	last     time.Time
	first    bool
}

// NewUpdateTimer creates a timer for the given scan interval.
func NewUpdateTimer(interval time.Duration, clock clockwork.Clock) *UpdateTimer {
	return &UpdateTimer{
		clock:    clock,
		interval: interval,
		first:    true,
	}
}

// ShouldUpdate reports whether an update is due, and if so marks the
// current time as the last update.
func (t *UpdateTimer) ShouldUpdate() bool {
	now := t.clock.Now()
	if t.first {
		t.first = false
		t.last = now
		return true
	}
	if now.Sub(t.last) >= t.interval {
		t.last = now
		return true
	}
	return false
}
