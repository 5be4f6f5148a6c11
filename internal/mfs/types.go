// Package mfs decodes hold and tap gestures on the two multifunction switches.
// Like the acquisition logic it does no I/O: samples are pushed in by the caller
// at a fixed cadence and durations are counted in samples.
package mfs

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Gesture is a completed switch pattern.
type Gesture uint8

const (
	Hold1 Gesture = iota
	Hold2
	Tap1
	Tap2
	Hold12
)

// NumGestures is the number of gesture classes.
const NumGestures = 5

var gestureNames = [NumGestures]string{"HOLD1", "HOLD2", "TAP1", "TAP2", "HOLD12"}

func (g Gesture) String() string {
	if int(g) >= NumGestures {
		return "UNKNOWN"
	}
	return gestureNames[g]
}

// Action is the configuration effect bound to a gesture.
type Action uint8

const (
	PowerTap   Action = 0
	PaperFeed  Action = 1
	LEDAdjust  Action = 2
	PaperShot  Action = 3
	PCTest     Action = 4
	OnOff      Action = 5
	Spare6     Action = 6
	Spare7     Action = 7
	Spare8     Action = 8
	TargetType Action = 9
)

var actionNames = [...]string{
	"POWER_TAP", "PAPER_FEED", "LED_ADJUST", "PAPER_SHOT", "PC_TEST",
	"ON_OFF", "SPARE_6", "SPARE_7", "SPARE_8", "TARGET_TYPE",
}

func (a Action) String() string {
	if int(a) >= len(actionNames) {
		return "UNKNOWN"
	}
	return actionNames[a]
}

// Table maps each gesture to an action. It is built once and never modified.
type Table [NumGestures]Action

// DefaultWord is the table used when none is configured:
// HOLD1=PAPER_FEED HOLD2=LED_ADJUST TAP1=PAPER_SHOT TAP2=PC_TEST HOLD12=ON_OFF.
const DefaultWord uint32 = 54321

// NewTable builds a table from a decimal configuration word. Each digit selects
// the action for one gesture, least significant first: HOLD1, HOLD2, TAP1, TAP2, HOLD12.
// Digits beyond the fifth are ignored.
func NewTable(word uint32) Table {
	var t Table
	for g := range t {
		t[g] = Action(word % 10)
		word /= 10
	}
	return t
}

// ParseTable parses a configuration word such as "54321".
func ParseTable(s string) (Table, error) {
	if len(s) == 0 || len(s) > NumGestures {
		return Table{}, errors.Errorf("mfs word %q: want 1 to %d digits", s, NumGestures)
	}
	word, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return Table{}, errors.Wrapf(err, "mfs word %q", s)
	}
	return NewTable(uint32(word)), nil
}

// Lookup returns the action configured for g.
func (t Table) Lookup(g Gesture) Action {
	if int(g) >= NumGestures {
		return Spare6
	}
	return t[g]
}

// Word returns the configuration word that rebuilds t.
func (t Table) Word() uint32 {
	var word uint32
	for g := NumGestures - 1; g >= 0; g-- {
		word = word*10 + uint32(t[g])
	}
	return word
}

func (t Table) String() string {
	return fmt.Sprintf("%05d", t.Word())
}

// Input is one sample of both switches. true = closed.
type Input struct {
	SW1 bool
	SW2 bool
}

// Config holds decoder timing.
type Config struct {
	// Interval is the sampling cadence the caller polls at.
	Interval time.Duration
	// DebounceSamples is the number of consecutive agreeing samples needed to change level.
	DebounceSamples int
	// TapMin is the shortest press that counts as a tap.
	TapMin time.Duration
	// HoldMin is the shortest press that counts as a hold.
	HoldMin time.Duration
}

// DefaultConfig returns the decoder timing used by the daemon.
func DefaultConfig() Config {
	return Config{
		Interval:        10 * time.Millisecond,
		DebounceSamples: 3,
		TapMin:          100 * time.Millisecond,
		HoldMin:         500 * time.Millisecond,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("mfs: interval must be positive")
	}
	if c.DebounceSamples < 1 {
		return errors.New("mfs: debounce samples must be at least 1")
	}
	if c.TapMin <= 0 || c.HoldMin <= c.TapMin {
		return errors.New("mfs: thresholds must satisfy 0 < tap < hold")
	}
	return nil
}

// Stats counts decoder outcomes since startup.
type Stats struct {
	Gestures  [NumGestures]int
	Ambiguous int
	Noise     int
}
