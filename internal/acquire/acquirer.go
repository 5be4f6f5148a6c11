package acquire

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned when an acquisition is armed or running.
	ErrAlreadyRunning = errors.New("acquisition already running")
	// ErrNotStopped is returned when timers are read before the session stopped.
	ErrNotStopped = errors.New("acquisition not stopped")
)

// Interrupts enables and disables the hardware event sources feeding an Acquirer.
// Implementations must not block and must not call back into the Acquirer.
type Interrupts interface {
	EnableFace()
	DisableFace()
	EnableSensors()
	DisableSensors()
}

// Counter reads the free-running counter shared by all timer channels.
type Counter interface {
	Ticks() uint64
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func() uint64

// Ticks calls f.
func (f CounterFunc) Ticks() uint64 {
	return f()
}

// Acquirer owns one acquisition session at a time.
//
// mu plays the role of the interrupt mask: Trip and FaceStrike take it only for
// the latch itself, and every state transition happens with it held, so the
// foreground never observes a half-latched bank.
type Acquirer struct {
	cfg     Config
	irq     Interrupts
	counter Counter
	clock   clock.Clock
	logger  *zap.SugaredLogger

	mu           sync.Mutex
	state        State
	trip         TripRegister
	bank         Timers
	reference    uint64
	runningSince time.Time
	window       uint64 // timeout in counter ticks, 0 = clock only
	outcome      Outcome
	stats        Stats

	pending chan struct{}
}

// New creates an idle Acquirer.
func New(cfg Config, irq Interrupts, counter Counter, clk clock.Clock, logger *zap.SugaredLogger) *Acquirer {
	a := &Acquirer{
		cfg:     cfg,
		irq:     irq,
		counter: counter,
		clock:   clk,
		logger:  logger,
		state:   StateIdle,
		pending: make(chan struct{}, 1),
	}
	if cfg.TickPeriod > 0 {
		a.window = uint64(cfg.Timeout / cfg.TickPeriod)
	}
	a.irq.DisableFace()
	a.irq.DisableSensors()
	return a
}

// Arm prepares a new session and enables the sensor interrupts.
func (a *Acquirer) Arm() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateArmed || a.state == StateRunning {
		return ErrAlreadyRunning
	}

	a.reset()
	a.drainPending()
	a.state = StateArmed
	a.stats.Armed++
	a.irq.EnableFace()
	a.irq.EnableSensors()
	a.logger.Debugw("armed", "session", a.stats.Armed)
	return nil
}

// Trip records a sensor edge for direction d captured at counter value tick.
// It is called from interrupt context and never blocks. Edges outside the
// timeout window of a running session are counted as ignored and not latched.
func (a *Acquirer) Trip(d Direction, tick uint64) {
	if !d.Valid() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateArmed:
		a.reference = tick
		a.runningSince = a.clock.Now()
		a.trip = 1 << d
		a.bank[d] = 0
		a.state = StateRunning

	case StateRunning:
		if a.trip.Has(d) {
			a.stats.Spurious++
			return
		}
		if a.late(tick) {
			a.stats.Ignored++
			return
		}
		if tick < a.reference {
			a.rebase(tick)
		}
		a.trip |= 1 << d
		a.bank[d] = latch(tick - a.reference)
		if a.trip.Full() {
			a.signal()
		}

	default:
		a.stats.Ignored++
	}
}

// FaceStrike records a face sensor edge. Face strikes are counted while an
// acquisition is live; they do not start or stop the session.
func (a *Acquirer) FaceStrike(tick uint64) {
	a.mu.Lock()
	if a.state == StateArmed || a.state == StateRunning {
		a.stats.FaceStrikes++
	}
	a.mu.Unlock()
}

// Pending is signalled when a trip completes the register. The foreground loop
// must still call Poll to perform the stop.
func (a *Acquirer) Pending() <-chan struct{} {
	return a.pending
}

// Poll evaluates the stop condition and stops the session if it holds.
func (a *Acquirer) Poll() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateRunning {
		return OutcomeNone
	}

	switch {
	case a.trip.Full():
		a.stop(OutcomeComplete)
		a.stats.Completed++
	case a.clock.Since(a.runningSince) >= a.cfg.Timeout:
		a.stop(OutcomeTimeout)
		a.stats.TimedOut++
	default:
		return OutcomeNone
	}

	a.logger.Debugw("stopped", "outcome", a.outcome, "trip", a.trip.String())
	return a.outcome
}

// ReadTimers copies the timer bank into out and returns the trip register.
// It is only valid once the session stopped and may be repeated until Clear or Arm.
func (a *Acquirer) ReadTimers(out *Timers) (TripRegister, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStopped {
		return 0, ErrNotStopped
	}
	*out = a.bank
	return a.trip, nil
}

// Result returns a copy of the stopped session including its outcome.
func (a *Acquirer) Result() (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStopped {
		return Result{}, ErrNotStopped
	}
	return Result{Trip: a.trip, Timers: a.bank, Outcome: a.outcome}, nil
}

// Clear discards a stopped session and returns to idle.
func (a *Acquirer) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateArmed, StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		a.reset()
		a.state = StateIdle
	}
	return nil
}

// IsRunning reports whether an acquisition is armed or running.
func (a *Acquirer) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateArmed || a.state == StateRunning
}

// StopTimers cancels any acquisition and returns to idle. Safe from any state.
func (a *Acquirer) StopTimers() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateArmed || a.state == StateRunning {
		a.stats.Cancelled++
		a.logger.Debugw("cancelled", "state", a.state, "trip", a.trip.String())
	}
	a.irq.DisableFace()
	a.irq.DisableSensors()
	a.reset()
	a.drainPending()
	a.state = StateIdle
}

// TripTimers force-completes a live acquisition as if every sensor fired now.
// Used for self test without physical sensors.
func (a *Acquirer) TripTimers() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateArmed && a.state != StateRunning {
		return
	}

	now := a.counter.Ticks()
	if a.state == StateArmed {
		a.reference = now
		a.runningSince = a.clock.Now()
	} else if now < a.reference {
		a.rebase(now)
	}
	for _, d := range Directions {
		if !a.trip.Has(d) {
			a.trip |= 1 << d
			a.bank[d] = latch(now - a.reference)
		}
	}
	a.stop(OutcomeForced)
	a.stats.Forced++
}

// State returns the current acquisition state.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Stats returns a copy of the event counters.
func (a *Acquirer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// stop freezes the session. Caller holds mu.
func (a *Acquirer) stop(outcome Outcome) {
	a.irq.DisableFace()
	a.irq.DisableSensors()
	for _, d := range Directions {
		if !a.trip.Has(d) {
			a.bank[d] = NotTripped
		}
	}
	a.outcome = outcome
	a.state = StateStopped
}

// reset clears the register and bank. Caller holds mu.
func (a *Acquirer) reset() {
	a.trip = 0
	a.bank = Timers{}
	a.reference = 0
	a.outcome = OutcomeNone
}

// late reports whether a trip at tick falls outside the timeout window, either
// by the counter or by the clock. Caller holds mu.
func (a *Acquirer) late(tick uint64) bool {
	if a.clock.Since(a.runningSince) >= a.cfg.Timeout {
		return true
	}
	if a.window == 0 {
		return false
	}

	span := tick - a.reference
	if tick < a.reference {
		// An earlier edge widens the window back from the latest latch
		var latest uint32
		for _, d := range Directions {
			if a.trip.Has(d) && a.bank[d] > latest {
				latest = a.bank[d]
			}
		}
		span = a.reference - tick + uint64(latest)
	}
	return span >= a.window
}

// rebase moves the reference back to tick, keeping latched entries relative to it.
func (a *Acquirer) rebase(tick uint64) {
	shift := a.reference - tick
	for _, d := range Directions {
		if a.trip.Has(d) {
			a.bank[d] = latch(uint64(a.bank[d]) + shift)
		}
	}
	a.reference = tick
}

func (a *Acquirer) signal() {
	select {
	case a.pending <- struct{}{}:
	default:
	}
}

func (a *Acquirer) drainPending() {
	select {
	case <-a.pending:
	default:
	}
}

func latch(elapsed uint64) uint32 {
	if elapsed > maxLatch {
		return uint32(maxLatch)
	}
	return uint32(elapsed)
}
