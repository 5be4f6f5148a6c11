//go:build linux

package gpio

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/freetarget/target-core/internal/acquire"
)

const consumer = "freetarget"

// RealReader reads the multifunction switches from hardware.
type RealReader struct {
	chip *gpiocdev.Chip
	sw1  *gpiocdev.Line
	sw2  *gpiocdev.Line
}

// NewRealReader requests both switch lines. Switches pull the line low when closed.
func NewRealReader(chipName string, pinSW1, pinSW2 int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrap(err, "open gpio chip")
	}

	sw1, err := chip.RequestLine(pinSW1, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "request SW1 pin %d", pinSW1), chip.Close())
	}

	sw2, err := chip.RequestLine(pinSW2, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "request SW2 pin %d", pinSW2), sw1.Close(), chip.Close())
	}

	return &RealReader{chip: chip, sw1: sw1, sw2: sw2}, nil
}

// Read returns the logical switch states. true = closed.
func (r *RealReader) Read() (bool, bool, error) {
	v1, err := r.sw1.Value()
	if err != nil {
		return false, false, errors.Wrap(err, "read SW1 pin")
	}
	v2, err := r.sw2.Value()
	if err != nil {
		return false, false, errors.Wrap(err, "read SW2 pin")
	}
	return v1 == 1, v2 == 1, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var err error
	if r.sw1 != nil {
		err = multierr.Append(err, errors.Wrap(r.sw1.Close(), "close SW1 pin"))
	}
	if r.sw2 != nil {
		err = multierr.Append(err, errors.Wrap(r.sw2.Close(), "close SW2 pin"))
	}
	if r.chip != nil {
		err = multierr.Append(err, errors.Wrap(r.chip.Close(), "close chip"))
	}
	return err
}

// Sensors watches the four directional sensors and the face sensor for rising
// edges. Edges are dropped while the matching interrupt source is disabled.
type Sensors struct {
	chip   *gpiocdev.Chip
	lines  [acquire.NumDirections]*gpiocdev.Line
	face   *gpiocdev.Line
	period time.Duration
	logger *zap.SugaredLogger

	sink      Sink
	faceOn    atomic.Bool
	sensorsOn atomic.Bool
}

// NewSensors requests the sensor lines. Events are converted to counter ticks of
// the given period, on the same monotonic base as MonotonicCounter.
func NewSensors(chipName string, pins Pins, period time.Duration, logger *zap.SugaredLogger) (*Sensors, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrap(err, "open gpio chip")
	}

	s := &Sensors{chip: chip, period: period, logger: logger}

	for _, d := range acquire.Directions {
		line, err := chip.RequestLine(pins.Sensor[d],
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(s.sensorHandler(d)))
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "request %s pin %d", strings.ToLower(d.String()), pins.Sensor[d]), s.Close())
		}
		s.lines[d] = line
	}

	face, err := chip.RequestLine(pins.Face,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(s.faceHandler))
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "request face pin %d", pins.Face), s.Close())
	}
	s.face = face

	return s, nil
}

// Bind sets the receiver of sensor edges. It must be called before the first arm.
func (s *Sensors) Bind(sink Sink) {
	s.sink = sink
}

// EnableFace starts delivering face sensor edges.
func (s *Sensors) EnableFace() { s.faceOn.Store(true) }

// DisableFace stops delivering face sensor edges.
func (s *Sensors) DisableFace() { s.faceOn.Store(false) }

// EnableSensors starts delivering directional sensor edges.
func (s *Sensors) EnableSensors() { s.sensorsOn.Store(true) }

// DisableSensors stops delivering directional sensor edges.
func (s *Sensors) DisableSensors() { s.sensorsOn.Store(false) }

func (s *Sensors) sensorHandler(d acquire.Direction) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		if !s.sensorsOn.Load() || s.sink == nil {
			return
		}
		s.sink.Trip(d, s.ticks(evt.Timestamp))
	}
}

func (s *Sensors) faceHandler(evt gpiocdev.LineEvent) {
	if !s.faceOn.Load() || s.sink == nil {
		return
	}
	s.sink.FaceStrike(s.ticks(evt.Timestamp))
}

func (s *Sensors) ticks(ts time.Duration) uint64 {
	return uint64(ts / s.period)
}

// Close releases the sensor lines.
func (s *Sensors) Close() error {
	s.DisableFace()
	s.DisableSensors()

	var err error
	for _, d := range acquire.Directions {
		if s.lines[d] != nil {
			err = multierr.Append(err, errors.Wrapf(s.lines[d].Close(), "close %s pin", strings.ToLower(d.String())))
			s.lines[d] = nil
		}
	}
	if s.face != nil {
		err = multierr.Append(err, errors.Wrap(s.face.Close(), "close face pin"))
		s.face = nil
	}
	if s.chip != nil {
		err = multierr.Append(err, errors.Wrap(s.chip.Close(), "close chip"))
		s.chip = nil
	}
	return err
}

// MonotonicCounter reads CLOCK_MONOTONIC, the clock gpiocdev stamps line events with.
type MonotonicCounter struct {
	Period time.Duration
}

// Ticks returns the monotonic time in counter ticks.
func (c MonotonicCounter) Ticks() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(time.Duration(ts.Nano()) / c.Period)
}

// ReadDIP samples the DIP switches once. Switches pull the line low when on.
func ReadDIP(chipName string, pins [4]int) (DIP, error) {
	lines, err := gpiocdev.RequestLines(chipName, pins[:],
		gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return DIP{}, errors.Wrap(err, "request dip pins")
	}
	defer lines.Close()

	values := make([]int, len(pins))
	if err := lines.Values(values); err != nil {
		return DIP{}, errors.Wrap(err, "read dip pins")
	}

	var on [4]bool
	for i, v := range values {
		on[i] = v == 1
	}
	return DIPFromValues(on), nil
}

// Paper drives the paper advance motor. The drive line is active low.
type Paper struct {
	line  *gpiocdev.Line
	clock clock.Clock
}

// NewPaper requests the paper drive line with the motor off.
func NewPaper(chipName string, pin int, clk clock.Clock) (*Paper, error) {
	line, err := gpiocdev.RequestLine(chipName, pin,
		gpiocdev.AsActiveLow, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "request paper pin %d", pin)
	}
	return &Paper{line: line, clock: clk}, nil
}

// Drive turns the motor on for d. The motor is always turned off on return.
func (p *Paper) Drive(ctx context.Context, d time.Duration) error {
	if err := p.line.SetValue(1); err != nil {
		return errors.Wrap(err, "paper on")
	}

	timer := p.clock.Timer(d)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-ctx.Done():
		ctxErr = ctx.Err()
	case <-timer.C:
	}

	if err := p.line.SetValue(0); err != nil {
		return multierr.Combine(ctxErr, errors.Wrap(err, "paper off"))
	}
	return ctxErr
}

// Close turns the motor off and releases the line.
func (p *Paper) Close() error {
	return multierr.Combine(p.line.SetValue(0), p.line.Close())
}
