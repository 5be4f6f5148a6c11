// Package mqtt publishes shot records, gestures and lifecycle events, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/mfs"
)

// TopicShots is the MQTT topic for completed acquisitions.
const TopicShots = "freetarget/target/shots"

// TopicMFS is the MQTT topic for decoded multifunction switch gestures.
const TopicMFS = "freetarget/target/mfs"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "freetarget/target/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishShot sends a completed acquisition to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishShot(shot acquire.Shot) error

	// PublishGesture sends a decoded gesture and the action it triggered.
	PublishGesture(event GestureEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// GestureEvent is a decoded gesture and the action bound to it.
type GestureEvent struct {
	Timestamp time.Time
	Gesture   mfs.Gesture
	Action    mfs.Action
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ShotPayload represents the MQTT message payload for a shot.
type ShotPayload struct {
	Shot ShotInner `json:"shot"`
}

// ShotInner contains the shot details.
type ShotInner struct {
	Timestamp  string     `json:"timestamp"`
	Seq        int        `json:"seq"`
	Outcome    string     `json:"outcome"`
	Trip       string     `json:"trip"`
	TargetType int        `json:"target_type"`
	Timers     TimersJSON `json:"timers"`
}

// TimersJSON holds the timer bank. Directions that did not trip are null.
type TimersJSON struct {
	North *uint32 `json:"north"`
	East  *uint32 `json:"east"`
	South *uint32 `json:"south"`
	West  *uint32 `json:"west"`
}

// FormatShotPayload creates the JSON payload for a shot.
func FormatShotPayload(shot acquire.Shot) ([]byte, error) {
	var timers [acquire.NumDirections]*uint32
	for _, d := range acquire.Directions {
		if shot.Trip.Has(d) && shot.Timers[d] != acquire.NotTripped {
			v := shot.Timers[d]
			timers[d] = &v
		}
	}

	payload := ShotPayload{
		Shot: ShotInner{
			Timestamp:  shot.Timestamp.UTC().Format(time.RFC3339Nano),
			Seq:        shot.Seq,
			Outcome:    string(shot.Outcome),
			Trip:       shot.Trip.String(),
			TargetType: shot.TargetType,
			Timers: TimersJSON{
				North: timers[acquire.North],
				East:  timers[acquire.East],
				South: timers[acquire.South],
				West:  timers[acquire.West],
			},
		},
	}
	return json.Marshal(payload)
}

// GesturePayload represents the MQTT message payload for a gesture.
type GesturePayload struct {
	MFS GestureInner `json:"mfs"`
}

// GestureInner contains the gesture details.
type GestureInner struct {
	Timestamp string `json:"timestamp"`
	Gesture   string `json:"gesture"`
	Action    string `json:"action"`
}

// FormatGesturePayload creates the JSON payload for a gesture.
func FormatGesturePayload(event GestureEvent) ([]byte, error) {
	payload := GesturePayload{
		MFS: GestureInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Gesture:   event.Gesture.String(),
			Action:    event.Action.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
