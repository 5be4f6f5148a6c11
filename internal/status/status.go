// Package status provides a thread-safe status tracker for the freetarget daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/mfs"
)

// NumTargetTypes is the number of selectable target faces.
const NumTargetTypes = 5

// LEDStep is the LED brightness increment, in percent.
const LEDStep = 25

// Config contains daemon configuration for display.
type Config struct {
	PollMs          int64
	DebounceSamples int
	TapMs           int64
	HoldMs          int64
	TimeoutUs       int64
	TickNs          int64
	MFSTable        string
	HeartbeatMs     int64
	Broker          string
	HTTPPort        string
	Chip            string
}

// Gesture records the most recently decoded gesture.
type Gesture struct {
	Gesture   mfs.Gesture
	Action    mfs.Action
	Timestamp time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value copy and stays valid after the lock is released.
type Snapshot struct {
	State         acquire.State
	Enabled       bool
	Acquire       acquire.Stats
	Shots         int
	LastShot      *acquire.Shot
	MFS           mfs.Stats
	SW1Closed     bool
	SW2Closed     bool
	LastGesture   *Gesture
	LEDLevel      int
	TargetType    int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	clock clock.Clock

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker whose start time is the clock's current time.
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clk,
		snap: Snapshot{
			State:     acquire.StateIdle,
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// UpdateAcquisition sets the acquisition state and counters.
// Called from runLoop on every tick.
func (t *Tracker) UpdateAcquisition(state acquire.State, stats acquire.Stats) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Acquire = stats
	t.mu.Unlock()
}

// UpdateMFS sets the gesture decoder counters.
func (t *Tracker) UpdateMFS(stats mfs.Stats) {
	t.mu.Lock()
	t.snap.MFS = stats
	t.mu.Unlock()
}

// UpdateSwitches sets the debounced switch levels. true = closed.
func (t *Tracker) UpdateSwitches(sw1, sw2 bool) {
	t.mu.Lock()
	t.snap.SW1Closed = sw1
	t.snap.SW2Closed = sw2
	t.mu.Unlock()
}

// RecordShot stores shot as the latest and bumps the shot count.
func (t *Tracker) RecordShot(shot acquire.Shot) {
	t.mu.Lock()
	t.snap.Shots++
	t.snap.LastShot = &shot
	t.mu.Unlock()
}

// RecordGesture stores the latest decoded gesture.
func (t *Tracker) RecordGesture(g mfs.Gesture, a mfs.Action, at time.Time) {
	t.mu.Lock()
	t.snap.LastGesture = &Gesture{Gesture: g, Action: a, Timestamp: at}
	t.mu.Unlock()
}

// SetEnabled records whether the target is switched on.
func (t *Tracker) SetEnabled(on bool) {
	t.mu.Lock()
	t.snap.Enabled = on
	t.mu.Unlock()
}

// Enabled reports whether the target is switched on.
func (t *Tracker) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Enabled
}

// StepLED advances the LED level by LEDStep, wrapping from 100 to 0, and
// returns the new level.
func (t *Tracker) StepLED() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LEDLevel += LEDStep
	if t.snap.LEDLevel > 100 {
		t.snap.LEDLevel = 0
	}
	return t.snap.LEDLevel
}

// NextTargetType cycles the target type and returns the new value.
func (t *Tracker) NextTargetType() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.TargetType = (t.snap.TargetType + 1) % NumTargetTypes
	return t.snap.TargetType
}

// TargetType returns the selected target type.
func (t *Tracker) TargetType() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.TargetType
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastShot != nil {
		shot := *s.LastShot
		s.LastShot = &shot
	}
	if s.LastGesture != nil {
		g := *s.LastGesture
		s.LastGesture = &g
	}
	s.Now = t.clock.Now()
	return s
}
