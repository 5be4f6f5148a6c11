//go:build !linux

package gpio

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pinSW1, pinSW2 int) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, bool, error) {
	return false, false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// Sensors is not available on non-Linux platforms.
type Sensors struct{}

// NewSensors returns an error on non-Linux platforms.
func NewSensors(chipName string, pins Pins, period time.Duration, logger *zap.SugaredLogger) (*Sensors, error) {
	return nil, errUnsupported
}

func (s *Sensors) Bind(sink Sink)  {}
func (s *Sensors) EnableFace()     {}
func (s *Sensors) DisableFace()    {}
func (s *Sensors) EnableSensors()  {}
func (s *Sensors) DisableSensors() {}
func (s *Sensors) Close() error    { return nil }

// MonotonicCounter falls back to the Go runtime clock on non-Linux platforms.
type MonotonicCounter struct {
	Period time.Duration
}

var processStart = time.Now()

// Ticks returns the time since process start in counter ticks.
func (c MonotonicCounter) Ticks() uint64 {
	return uint64(time.Since(processStart) / c.Period)
}

// ReadDIP returns an error on non-Linux platforms.
func ReadDIP(chipName string, pins [4]int) (DIP, error) {
	return DIP{}, errUnsupported
}

// Paper is not available on non-Linux platforms.
type Paper struct{}

// NewPaper returns an error on non-Linux platforms.
func NewPaper(chipName string, pin int, clk clock.Clock) (*Paper, error) {
	return nil, errUnsupported
}

// Drive is not implemented on non-Linux platforms.
func (p *Paper) Drive(ctx context.Context, d time.Duration) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *Paper) Close() error {
	return nil
}
