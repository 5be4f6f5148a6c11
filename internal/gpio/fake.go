package gpio

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/freetarget/target-core/internal/acquire"
)

// FakeReader is a test double that returns scripted switch values.
type FakeReader struct {
	// Samples contains scripted (sw1, sw2) values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single switch reading (already in logical form).
type Sample struct {
	SW1 bool // true = closed
	SW2 bool // true = closed
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Hold returns n copies of the same sample, for building scripts.
func Hold(sw1, sw2 bool, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{SW1: sw1, SW2: sw2}
	}
	return out
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.SW1, sample.SW2, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeSensors stands in for the sensor lines. Fire and Strike play the role of
// hardware edges and are dropped while the matching source is disabled.
type FakeSensors struct {
	mu             sync.Mutex
	sink           Sink
	faceEnabled    bool
	sensorsEnabled bool
	dropped        int
}

// NewFakeSensors creates FakeSensors with all sources disabled.
func NewFakeSensors() *FakeSensors {
	return &FakeSensors{}
}

// Bind sets the receiver of edges.
func (f *FakeSensors) Bind(sink Sink) {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
}

func (f *FakeSensors) EnableFace()     { f.set(&f.faceEnabled, true) }
func (f *FakeSensors) DisableFace()    { f.set(&f.faceEnabled, false) }
func (f *FakeSensors) EnableSensors()  { f.set(&f.sensorsEnabled, true) }
func (f *FakeSensors) DisableSensors() { f.set(&f.sensorsEnabled, false) }

func (f *FakeSensors) set(flag *bool, v bool) {
	f.mu.Lock()
	*flag = v
	f.mu.Unlock()
}

// Enabled reports whether the face and sensor sources are enabled.
func (f *FakeSensors) Enabled() (face, sensors bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faceEnabled, f.sensorsEnabled
}

// Dropped returns the number of edges dropped while disabled.
func (f *FakeSensors) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Fire delivers a directional edge. It reports whether the edge was delivered.
func (f *FakeSensors) Fire(d acquire.Direction, tick uint64) bool {
	f.mu.Lock()
	sink, on := f.sink, f.sensorsEnabled
	if !on || sink == nil {
		f.dropped++
	}
	f.mu.Unlock()

	if !on || sink == nil {
		return false
	}
	sink.Trip(d, tick)
	return true
}

// Strike delivers a face sensor edge. It reports whether the edge was delivered.
func (f *FakeSensors) Strike(tick uint64) bool {
	f.mu.Lock()
	sink, on := f.sink, f.faceEnabled
	if !on || sink == nil {
		f.dropped++
	}
	f.mu.Unlock()

	if !on || sink == nil {
		return false
	}
	sink.FaceStrike(tick)
	return true
}

// FakePaper records motor drives.
type FakePaper struct {
	mu     sync.Mutex
	Drives []time.Duration
	Err    error
}

// Drive records d.
func (p *FakePaper) Drive(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Drives = append(p.Drives, d)
	return nil
}

// Driven returns a copy of the recorded drives.
func (p *FakePaper) Driven() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.Drives...)
}
