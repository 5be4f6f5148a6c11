package main

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/config"
	"github.com/freetarget/target-core/internal/gpio"
	"github.com/freetarget/target-core/internal/mfs"
	"github.com/freetarget/target-core/internal/mqtt"
	"github.com/freetarget/target-core/internal/status"
)

// daemon is the foreground loop. Everything except the Acquirer and Tracker is
// owned by the goroutine running runLoop.
type daemon struct {
	cfg        config.Config
	acq        *acquire.Acquirer
	decoder    *mfs.Decoder
	switches   mfs.Reader
	paper      gpio.Motor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	clock      clock.Clock
	logger     *zap.SugaredLogger
	selfTest   bool

	seq       int
	heartbeat *status.Heartbeat

	// paper drives run beside the loop so sampling never stalls
	motorCtx    context.Context
	motorCancel context.CancelFunc
	motorWG     sync.WaitGroup
	motorBusy   bool
	motorMu     sync.Mutex
}

func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	d.heartbeat = status.NewHeartbeat(d.cfg.Heartbeat, d.clock.Now())
	d.motorCtx, d.motorCancel = context.WithCancel(context.Background())
	defer func() {
		d.motorCancel()
		d.motorWG.Wait()
	}()

	d.powerOn()
	if d.selfTest {
		d.logger.Infow("self test: forcing a full trip")
		d.acq.TripTimers()
	}
	d.refresh()

	for {
		select {
		case s := <-sig:
			d.shutdown(s)
			return nil

		case <-d.acq.Pending():
			d.collect()
			d.refresh()

		case <-tick:
			// Collect first so a stop gesture never discards an unread shot
			d.collect()

			sw1, sw2, err := d.switches.Read()
			if err != nil {
				d.logger.Warnw("switch read error", "error", err)
			} else if g, ok := d.decoder.Process(mfs.Input{SW1: sw1, SW2: sw2}); ok {
				d.dispatch(g)
			}

			d.refresh()

			now := d.clock.Now()
			if d.heartbeat.Due(now) {
				d.publishStatus("HEARTBEAT", "", now)
			}
		}
	}
}

// collect stops the session if its stop condition holds, then publishes a
// stopped session and re-arms while the target is on.
func (d *daemon) collect() {
	d.acq.Poll()

	res, err := d.acq.Result()
	if err != nil {
		return
	}

	d.seq++
	shot := acquire.Shot{
		Seq:        d.seq,
		Timestamp:  d.clock.Now(),
		TargetType: d.tracker.TargetType(),
		Result:     res,
	}
	d.logger.Infow("shot",
		"seq", shot.Seq,
		"outcome", shot.Outcome,
		"trip", shot.Trip.String(),
		"timers", shot.Timers)

	if err := d.publisher.PublishShot(shot); err != nil {
		// Don't crash on publish failure
		d.logger.Warnw("shot publish error", "seq", shot.Seq, "error", err)
	}
	d.tracker.RecordShot(shot)

	if err := d.acq.Clear(); err != nil {
		d.logger.Warnw("clear failed", "error", err)
		return
	}
	if d.tracker.Enabled() {
		if err := d.acq.Arm(); err != nil {
			d.logger.Warnw("re-arm failed", "error", err)
		}
	}
}

// dispatch performs the action configured for g.
func (d *daemon) dispatch(g mfs.Gesture) {
	now := d.clock.Now()
	action := d.cfg.Table.Lookup(g)
	d.logger.Infow("gesture", "gesture", g.String(), "action", action.String())
	d.tracker.RecordGesture(g, action, now)

	switch action {
	case mfs.PowerTap:
		d.logger.Infow("power tap")
	case mfs.PaperFeed:
		d.advancePaper(d.cfg.PaperFeed)
	case mfs.PaperShot:
		d.advancePaper(d.cfg.PaperShot)
	case mfs.LEDAdjust:
		d.logger.Infow("led level", "percent", d.tracker.StepLED())
	case mfs.PCTest:
		if !d.acq.IsRunning() {
			d.logger.Infow("pc test ignored, target is not armed")
			break
		}
		d.acq.TripTimers()
		d.collect()
	case mfs.OnOff:
		if d.tracker.Enabled() {
			d.powerOff()
		} else {
			d.powerOn()
		}
	case mfs.TargetType:
		d.logger.Infow("target type", "type", d.tracker.NextTargetType())
	default:
		d.logger.Debugw("unassigned action", "action", action.String())
	}

	event := mqtt.GestureEvent{Timestamp: now, Gesture: g, Action: action}
	if err := d.publisher.PublishGesture(event); err != nil {
		d.logger.Warnw("gesture publish error", "error", err)
	}
}

func (d *daemon) powerOn() {
	if err := d.acq.Clear(); err != nil {
		d.logger.Warnw("clear failed", "error", err)
	}
	if err := d.acq.Arm(); err != nil {
		d.logger.Warnw("arm failed", "error", err)
		return
	}
	d.tracker.SetEnabled(true)
	d.logger.Infow("target on")
}

func (d *daemon) powerOff() {
	d.acq.StopTimers()
	d.tracker.SetEnabled(false)
	d.logger.Infow("target off")
}

// advancePaper starts a motor drive unless one is already running.
func (d *daemon) advancePaper(dur time.Duration) {
	if dur <= 0 {
		return
	}

	d.motorMu.Lock()
	if d.motorBusy {
		d.motorMu.Unlock()
		d.logger.Debugw("paper motor busy")
		return
	}
	d.motorBusy = true
	d.motorMu.Unlock()

	d.motorWG.Add(1)
	go func() {
		defer d.motorWG.Done()
		err := d.paper.Drive(d.motorCtx, dur)

		d.motorMu.Lock()
		d.motorBusy = false
		d.motorMu.Unlock()

		if err != nil {
			d.logger.Warnw("paper drive error", "duration", dur, "error", err)
		}
	}()
}

// refresh copies acquisition and decoder state into the tracker for HTTP consumers.
func (d *daemon) refresh() {
	d.tracker.UpdateAcquisition(d.acq.State(), d.acq.Stats())
	d.tracker.UpdateMFS(d.decoder.Stats())
	d.tracker.UpdateSwitches(d.decoder.Closed())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) publishStatus(event, reason string, now time.Time) {
	d.refresh()
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.logger.Warnw("system event publish error", "event", event, "error", err)
	}
}

func (d *daemon) shutdown(s os.Signal) {
	d.logger.Infow("shutting down", "signal", s)
	d.acq.StopTimers()
	d.tracker.SetEnabled(false)

	d.publishStatus("SHUTDOWN", signalName(s), d.clock.Now())
	d.logger.Infow("published shutdown event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
