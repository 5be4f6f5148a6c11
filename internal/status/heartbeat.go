package status

import "time"

// Heartbeat decides when the periodic status event is due.
type Heartbeat struct {
	interval time.Duration
	last     time.Time
}

// NewHeartbeat creates a Heartbeat whose first beat is due one interval after start.
// An interval <= 0 disables it.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{interval: interval, last: start}
}

// Due reports whether the interval has elapsed since the last beat (or startup)
// and, if so, records now as the last beat.
func (h *Heartbeat) Due(now time.Time) bool {
	if h.interval <= 0 {
		return false
	}
	if now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
