package mfs

import (
	"context"
	"time"
)

// Reader reads the raw switch levels. true = closed.
type Reader interface {
	Read() (bool, bool, error)
}

type press uint8

const (
	pressNone press = iota
	pressTap
	pressHold
)

// switchState tracks one physical switch.
type switchState struct {
	// Whether the debounced level has been established
	known bool
	// Debounced level
	closed bool
	// Consecutive samples disagreeing with the debounced level
	agree int
	// Samples spent closed in the current press
	held int
	// Classification of the last real press in this gesture
	press press
	// Real presses seen in this gesture
	presses int
	// Sample number of the last real release
	releasedAt int
}

// Decoder turns switch samples into gestures. It is not safe for concurrent use;
// the foreground loop owns it.
type Decoder struct {
	debounce    int
	tapSamples  int
	holdSamples int

	sw     [2]switchState
	n      int // samples processed
	synced bool
	active bool
	stats  Stats
}

// NewDecoder creates a decoder. It stays unsynced until both switches are seen open.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		debounce:    cfg.DebounceSamples,
		tapSamples:  samples(cfg.TapMin, cfg.Interval),
		holdSamples: samples(cfg.HoldMin, cfg.Interval),
	}
}

// Process consumes one sample and returns a gesture when one completes.
// Presses shorter than the tap threshold and patterns that match no gesture
// return false.
func (d *Decoder) Process(in Input) (Gesture, bool) {
	d.n++
	d.sample(&d.sw[0], in.SW1)
	d.sample(&d.sw[1], in.SW2)

	if !d.sw[0].known || !d.sw[1].known {
		return 0, false
	}

	open := !d.sw[0].closed && !d.sw[1].closed

	if !d.synced {
		if open {
			d.synced = true
		}
		d.clearGesture()
		return 0, false
	}

	if !open {
		d.active = true
		return 0, false
	}
	if !d.active {
		return 0, false
	}

	g, ok := d.classify()
	d.clearGesture()
	if ok {
		d.stats.Gestures[g]++
	}
	return g, ok
}

// Resync drops any gesture in progress and waits for both switches to open again.
func (d *Decoder) Resync() {
	d.synced = false
	d.clearGesture()
}

// Synced reports whether both switches have been seen open since the last resync.
func (d *Decoder) Synced() bool {
	return d.synced
}

// Closed returns the debounced switch levels.
func (d *Decoder) Closed() (bool, bool) {
	return d.sw[0].closed, d.sw[1].closed
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// WaitOpen polls r on every tick until both switches are debounced open.
// Read errors are skipped. Sensor interrupts are untouched, so acquisition stays live.
func (d *Decoder) WaitOpen(ctx context.Context, r Reader, tick <-chan time.Time) error {
	d.Resync()
	for !d.synced {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}

		sw1, sw2, err := r.Read()
		if err != nil {
			continue
		}
		d.Process(Input{SW1: sw1, SW2: sw2})
	}
	return nil
}

// sample applies the debounce rule and updates the hold counter.
func (d *Decoder) sample(sw *switchState, raw bool) {
	if !sw.known {
		if sw.agree > 0 && raw == sw.closed {
			sw.agree++
		} else {
			sw.closed = raw
			sw.agree = 1
		}
		if sw.agree >= d.debounce {
			sw.known = true
			sw.agree = 0
		}
		return
	}

	if raw == sw.closed {
		sw.agree = 0
	} else {
		sw.agree++
		if sw.agree >= d.debounce {
			sw.agree = 0
			sw.closed = raw
			if raw {
				sw.held = 0
			} else {
				d.release(sw)
			}
		}
	}

	if sw.closed {
		sw.held++
	}
}

// release classifies a finished press.
func (d *Decoder) release(sw *switchState) {
	switch {
	case sw.held >= d.holdSamples:
		sw.press = pressHold
	case sw.held >= d.tapSamples:
		sw.press = pressTap
	default:
		d.stats.Noise++
		return
	}
	sw.presses++
	sw.releasedAt = d.n
}

func (d *Decoder) classify() (Gesture, bool) {
	s1, s2 := d.sw[0], d.sw[1]

	if s1.presses > 1 || s2.presses > 1 {
		d.stats.Ambiguous++
		return 0, false
	}

	switch {
	case s1.press == pressHold && s2.press == pressHold && d.releasedTogether():
		return Hold12, true
	case s1.press == pressHold && s2.press == pressNone:
		return Hold1, true
	case s1.press == pressNone && s2.press == pressHold:
		return Hold2, true
	case s1.press == pressTap && s2.press == pressNone:
		return Tap1, true
	case s1.press == pressNone && s2.press == pressTap:
		return Tap2, true
	case s1.press == pressNone && s2.press == pressNone:
		// Only noise this cycle.
		return 0, false
	}

	d.stats.Ambiguous++
	return 0, false
}

// releasedTogether reports whether both switches opened less than a tap apart.
func (d *Decoder) releasedTogether() bool {
	gap := d.sw[0].releasedAt - d.sw[1].releasedAt
	if gap < 0 {
		gap = -gap
	}
	return gap < d.tapSamples
}

func (d *Decoder) clearGesture() {
	d.active = false
	for i := range d.sw {
		d.sw[i].press = pressNone
		d.sw[i].presses = 0
	}
}

// samples converts a duration to a sample count, rounding up.
func samples(d, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int((d + interval - 1) / interval)
	if n < 1 {
		n = 1
	}
	return n
}
