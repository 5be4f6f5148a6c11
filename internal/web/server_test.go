package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/mfs"
	"github.com/freetarget/target-core/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := status.Config{
		PollMs:      10,
		TimeoutUs:   5000,
		HeartbeatMs: 900000,
		MFSTable:    "54321",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	tr := status.NewTracker(clk, cfg)
	srv := New(":0", tr, zaptest.NewLogger(t).Sugar())
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetEnabled(true)
	tr.UpdateAcquisition(acquire.StateArmed, acquire.Stats{Armed: 3, Completed: 2})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.State != "ARMED" {
		t.Errorf("State: got %q, want ARMED", sj.Status.State)
	}
	if !sj.Status.Enabled {
		t.Error("expected Enabled=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Acquisition.Completed != 2 {
		t.Errorf("Acquisition.Completed: got %d, want 2", sj.Status.Acquisition.Completed)
	}
	if sj.Status.Config.PollMs != 10 {
		t.Errorf("Config.PollMs: got %d, want 10", sj.Status.Config.PollMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
}

func TestHTMLBeforeFirstShot(t *testing.T) {
	ts, _ := newTestServer(t)
	body := getBody(t, ts.URL+"/index.html")

	if !strings.Contains(body, "No shots yet") {
		t.Error("expected placeholder before the first shot")
	}
	if !strings.Contains(body, ">OFF<") {
		t.Error("expected target to show OFF")
	}
}

func TestHTMLShowsLastShotAndGesture(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordShot(acquire.Shot{
		Seq:       7,
		Timestamp: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Result: acquire.Result{
			Trip:    acquire.TripNorth | acquire.TripWest,
			Timers:  acquire.Timers{0, acquire.NotTripped, acquire.NotTripped, 41},
			Outcome: acquire.OutcomeTimeout,
		},
	})
	tr.RecordGesture(mfs.Hold12, mfs.OnOff, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC))

	body := getBody(t, ts.URL+"/")

	for _, want := range []string{"#7 TIMEOUT", "1001", "<th>WEST</th><td>41</td>", "<th>EAST</th><td>-</td>", "HOLD12 &rarr; ON_OFF"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.State != "IDLE" {
		t.Errorf("expected IDLE initially, got %q", sj1.Status.State)
	}
	if sj1.Status.LastShot != nil {
		t.Error("expected no last shot initially")
	}

	tr.UpdateAcquisition(acquire.StateStopped, acquire.Stats{Armed: 1, Completed: 1})
	tr.RecordShot(acquire.Shot{Seq: 1, Result: acquire.Result{Trip: acquire.TripAll, Outcome: acquire.OutcomeComplete}})
	tr.NextTargetType()

	sj2 := getJSON(t, ts.URL+"/index.json")
	if sj2.Status.State != "STOPPED" {
		t.Errorf("State: got %q, want STOPPED", sj2.Status.State)
	}
	if sj2.Status.LastShot == nil || sj2.Status.LastShot.Seq != 1 {
		t.Errorf("LastShot: got %+v", sj2.Status.LastShot)
	}
	if sj2.Status.Target.Type != 1 {
		t.Errorf("Target.Type: got %d, want 1", sj2.Status.Target.Type)
	}
}

func TestShotEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)

	resp, err := http.Get(ts.URL + "/shot.json")
	if err != nil {
		t.Fatalf("GET /shot.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("before first shot: got %d, want 404", resp.StatusCode)
	}

	tr.RecordShot(acquire.Shot{
		Seq:       4,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC),
		Result: acquire.Result{
			Trip:    acquire.TripAll,
			Timers:  acquire.Timers{0, 17, 33, 8},
			Outcome: acquire.OutcomeComplete,
		},
	})

	resp, err = http.Get(ts.URL + "/shot.json")
	if err != nil {
		t.Fatalf("GET /shot.json: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var shot status.ShotJSON
	if err := json.NewDecoder(resp.Body).Decode(&shot); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if shot.Seq != 4 || shot.Outcome != "COMPLETE" || shot.Trip != "1111" {
		t.Errorf("unexpected shot: %+v", shot)
	}
	if shot.Timers[acquire.South] == nil || *shot.Timers[acquire.South] != 33 {
		t.Errorf("south timer: got %v, want 33", shot.Timers[acquire.South])
	}
}

func TestRejectsWrites(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.json", "/shot.json"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, resp.StatusCode)
		}
		if allow := resp.Header.Get("Allow"); allow != "GET, HEAD" {
			t.Errorf("POST %s: Allow header %q", path, allow)
		}
	}
}

func TestHTMLShowsSwitchLevels(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.UpdateSwitches(false, true)

	body := getBody(t, ts.URL+"/")
	for _, want := range []string{`<td id="sw1">OPEN</td>`, `<td id="sw2">CLOSED</td>`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
