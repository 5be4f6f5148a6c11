package status

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/mfs"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	State         string          `json:"state"`
	Enabled       bool            `json:"enabled"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Target        TargetJSON      `json:"target"`
	Acquisition   AcquisitionJSON `json:"acquisition"`
	LastShot      *ShotJSON       `json:"last_shot,omitempty"`
	MFS           MFSJSON         `json:"mfs"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// TargetJSON reports the settings changed from the switches.
type TargetJSON struct {
	Type     int `json:"type"`
	LEDLevel int `json:"led_level"`
}

// AcquisitionJSON is the JSON representation of acquisition counters.
type AcquisitionJSON struct {
	Shots       int `json:"shots"`
	Armed       int `json:"armed"`
	Completed   int `json:"completed"`
	TimedOut    int `json:"timed_out"`
	Forced      int `json:"forced"`
	Cancelled   int `json:"cancelled"`
	Spurious    int `json:"spurious"`
	Ignored     int `json:"ignored"`
	FaceStrikes int `json:"face_strikes"`
}

// ShotJSON is the JSON representation of the last shot. Timers are in
// north, east, south, west order; untripped directions are null.
type ShotJSON struct {
	Seq       int                            `json:"seq"`
	Timestamp string                         `json:"timestamp"`
	Outcome   string                         `json:"outcome"`
	Trip      string                         `json:"trip"`
	Timers    [acquire.NumDirections]*uint32 `json:"timers"`
}

// MFSJSON is the JSON representation of the gesture decoder.
type MFSJSON struct {
	Gestures    map[string]int `json:"gestures"`
	Ambiguous   int            `json:"ambiguous"`
	Noise       int            `json:"noise"`
	SW1Closed   bool           `json:"sw1_closed"`
	SW2Closed   bool           `json:"sw2_closed"`
	LastGesture *GestureJSON   `json:"last_gesture,omitempty"`
}

// GestureJSON is the JSON representation of a decoded gesture.
type GestureJSON struct {
	Gesture   string `json:"gesture"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	DebounceSamples int    `json:"debounce_samples"`
	TapMs           int64  `json:"tap_ms"`
	HoldMs          int64  `json:"hold_ms"`
	TimeoutUs       int64  `json:"timeout_us"`
	TickNs          int64  `json:"tick_ns"`
	MFSTable        string `json:"mfs_table"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker"`
	HTTPPort        string `json:"http_port"`
	Chip            string `json:"chip"`
}

func buildShot(shot *acquire.Shot) *ShotJSON {
	if shot == nil {
		return nil
	}
	out := &ShotJSON{
		Seq:       shot.Seq,
		Timestamp: shot.Timestamp.UTC().Format(time.RFC3339Nano),
		Outcome:   string(shot.Outcome),
		Trip:      shot.Trip.String(),
	}
	for _, d := range acquire.Directions {
		if shot.Trip.Has(d) && shot.Timers[d] != acquire.NotTripped {
			v := shot.Timers[d]
			out.Timers[d] = &v
		}
	}
	return out
}

func buildMFS(snap Snapshot) MFSJSON {
	out := MFSJSON{
		Gestures:  make(map[string]int, mfs.NumGestures),
		Ambiguous: snap.MFS.Ambiguous,
		Noise:     snap.MFS.Noise,
		SW1Closed: snap.SW1Closed,
		SW2Closed: snap.SW2Closed,
	}
	for g, n := range snap.MFS.Gestures {
		out.Gestures[strings.ToLower(mfs.Gesture(g).String())] = n
	}
	if lg := snap.LastGesture; lg != nil {
		out.LastGesture = &GestureJSON{
			Gesture:   lg.Gesture.String(),
			Action:    lg.Action.String(),
			Timestamp: lg.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}
	a := snap.Acquire

	return StatusInner{
		State:         state,
		Enabled:       snap.Enabled,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Target:        TargetJSON{Type: snap.TargetType, LEDLevel: snap.LEDLevel},
		Acquisition: AcquisitionJSON{
			Shots:       snap.Shots,
			Armed:       a.Armed,
			Completed:   a.Completed,
			TimedOut:    a.TimedOut,
			Forced:      a.Forced,
			Cancelled:   a.Cancelled,
			Spurious:    a.Spurious,
			Ignored:     a.Ignored,
			FaceStrikes: a.FaceStrikes,
		},
		LastShot: buildShot(snap.LastShot),
		MFS:      buildMFS(snap),
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			DebounceSamples: snap.Config.DebounceSamples,
			TapMs:           snap.Config.TapMs,
			HoldMs:          snap.Config.HoldMs,
			TimeoutUs:       snap.Config.TimeoutUs,
			TickNs:          snap.Config.TickNs,
			MFSTable:        snap.Config.MFSTable,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			Chip:            snap.Config.Chip,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatShot returns the JSON for the most recent shot, or false before the first one.
func FormatShot(snap Snapshot) ([]byte, bool) {
	shot := buildShot(snap.LastShot)
	if shot == nil {
		return nil, false
	}
	data, _ := json.MarshalIndent(shot, "", "  ")
	return data, true
}
