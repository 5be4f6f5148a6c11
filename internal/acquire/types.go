// Package acquire contains the four-channel shot acquisition state machine.
// Sensor edges arrive as Trip calls from interrupt context; the foreground loop
// evaluates the stop condition with Poll and reads the frozen timer bank.
// Hardware is reached only through the Interrupts and Counter interfaces.
package acquire

import (
	"math"
	"time"
)

// Direction identifies one of the four sensor channels.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// NumDirections is the number of sensor channels.
const NumDirections = 4

var directionNames = [NumDirections]string{"NORTH", "EAST", "SOUTH", "WEST"}

func (d Direction) String() string {
	if int(d) >= NumDirections {
		return "UNKNOWN"
	}
	return directionNames[d]
}

// Valid reports whether d names a sensor channel.
func (d Direction) Valid() bool {
	return d < NumDirections
}

// Directions lists every channel in bank order.
var Directions = [NumDirections]Direction{North, East, South, West}

// TripRegister holds one bit per direction that has fired since the last arm.
type TripRegister uint8

const (
	TripNorth TripRegister = 1 << North
	TripEast  TripRegister = 1 << East
	TripSouth TripRegister = 1 << South
	TripWest  TripRegister = 1 << West

	// TripAll is the register value once every sensor has reported.
	TripAll = TripNorth | TripEast | TripSouth | TripWest
)

// Has reports whether direction d is marked tripped.
func (r TripRegister) Has(d Direction) bool {
	return r&(1<<d) != 0
}

// Full reports whether all four directions tripped.
func (r TripRegister) Full() bool {
	return r&TripAll == TripAll
}

// Count returns the number of tripped directions.
func (r TripRegister) Count() int {
	n := 0
	for _, d := range Directions {
		if r.Has(d) {
			n++
		}
	}
	return n
}

// String renders the register as four binary digits, west first ("0001" = north only).
func (r TripRegister) String() string {
	var b [NumDirections]byte
	for i := range b {
		if r.Has(Direction(NumDirections - 1 - i)) {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b[:])
}

// NotTripped marks a timer bank entry whose direction never fired.
const NotTripped uint32 = math.MaxUint32

// maxLatch is the largest value a real latch may hold.
const maxLatch = uint64(NotTripped - 1)

// Timers is the timer bank: ticks from the shared reference to each direction's trip.
type Timers [NumDirections]uint32

// State is the acquisition state.
type State string

const (
	StateIdle    State = "IDLE"
	StateArmed   State = "ARMED"
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
)

// Outcome describes how a session left the running state.
type Outcome string

const (
	// OutcomeNone means no transition happened.
	OutcomeNone Outcome = ""
	// OutcomeComplete means all four sensors reported.
	OutcomeComplete Outcome = "COMPLETE"
	// OutcomeTimeout means the timeout expired with a partial trip register.
	OutcomeTimeout Outcome = "TIMEOUT"
	// OutcomeForced means TripTimers completed the session.
	OutcomeForced Outcome = "FORCED"
)

// Result is a frozen copy of a stopped session.
type Result struct {
	Trip    TripRegister
	Timers  Timers
	Outcome Outcome
}

// Shot is a completed acquisition as handed to publishers and status consumers.
type Shot struct {
	Seq        int
	Timestamp  time.Time
	TargetType int
	Result
}

// Stats counts acquisition events since startup.
type Stats struct {
	Armed       int
	Completed   int
	TimedOut    int
	Forced      int
	Cancelled   int
	Spurious    int
	Ignored     int
	FaceStrikes int
}

// Config holds acquisition settings.
type Config struct {
	// Timeout bounds the running state, measured from the first trip.
	Timeout time.Duration
	// TickPeriod is the duration of one counter tick.
	TickPeriod time.Duration
}

// DefaultConfig returns the settings used by the daemon unless overridden.
func DefaultConfig() Config {
	return Config{
		Timeout:    5 * time.Millisecond,
		TickPeriod: 125 * time.Nanosecond,
	}
}
