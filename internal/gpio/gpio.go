// Package gpio connects the target hardware to the acquisition and MFS logic.
// The real implementation uses the Linux GPIO character device; sensor edges are
// delivered as line events, which stand in for the firmware's interrupts.
// The fake implementations allow testing without hardware.
package gpio

import (
	"context"
	"time"

	"github.com/freetarget/target-core/internal/acquire"
)

// SwitchReader reads the two multifunction switches.
type SwitchReader interface {
	// Read returns the logical switch states. true = closed.
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Sink receives sensor edges. *acquire.Acquirer implements it.
type Sink interface {
	Trip(d acquire.Direction, tick uint64)
	FaceStrike(tick uint64)
}

// Motor drives the paper advance.
type Motor interface {
	// Drive runs the motor for d, or until ctx is done.
	Drive(ctx context.Context, d time.Duration) error
}

// DIP holds the DIP switch flags sampled once at startup.
type DIP struct {
	Calibrate    bool
	CalLow       bool
	CalHigh      bool
	VerboseTrace bool
}

// Pins holds line offsets (BCM numbering).
type Pins struct {
	Sensor [acquire.NumDirections]int
	Face   int
	SW1    int
	SW2    int
	Paper  int
	// DIP lines, DIP_0 first.
	DIP [4]int
}

// Default pin assignments.
const (
	DefaultPinNorth = 5
	DefaultPinEast  = 6
	DefaultPinSouth = 13
	DefaultPinWest  = 19
	DefaultPinFace  = 26
	DefaultPinSW1   = 20
	DefaultPinSW2   = 21
	DefaultPinPaper = 18
)

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		Sensor: [acquire.NumDirections]int{DefaultPinNorth, DefaultPinEast, DefaultPinSouth, DefaultPinWest},
		Face:   DefaultPinFace,
		SW1:    DefaultPinSW1,
		SW2:    DefaultPinSW2,
		Paper:  DefaultPinPaper,
		DIP:    [4]int{4, 17, 27, 22},
	}
}

// DIPFromValues decodes DIP_0..DIP_3 logical levels (true = switch on).
func DIPFromValues(v [4]bool) DIP {
	return DIP{
		VerboseTrace: v[0],
		CalHigh:      v[1],
		CalLow:       v[2],
		Calibrate:    v[3],
	}
}
