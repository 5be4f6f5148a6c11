package mqtt

import (
	"github.com/freetarget/target-core/internal/acquire"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Shots contains all shots that were published.
	Shots []acquire.Shot

	// ShotPayloads contains the JSON payloads for shots.
	ShotPayloads [][]byte

	// Gestures contains all gesture events that were published.
	Gestures []GestureEvent

	// GesturePayloads contains the JSON payloads for gestures.
	GesturePayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishShot and PublishGesture.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishShot records the shot.
func (f *FakePublisher) PublishShot(shot acquire.Shot) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatShotPayload(shot)
	if err != nil {
		return err
	}
	f.Shots = append(f.Shots, shot)
	f.ShotPayloads = append(f.ShotPayloads, payload)
	return nil
}

// PublishGesture records the gesture.
func (f *FakePublisher) PublishGesture(event GestureEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatGesturePayload(event)
	if err != nil {
		return err
	}
	f.Gestures = append(f.Gestures, event)
	f.GesturePayloads = append(f.GesturePayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
