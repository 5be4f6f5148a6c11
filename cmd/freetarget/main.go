// Command freetarget arms the four acoustic sensors, publishes every shot's
// timer bank to MQTT, and acts on multifunction switch gestures.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/config"
	"github.com/freetarget/target-core/internal/gpio"
	"github.com/freetarget/target-core/internal/mfs"
	"github.com/freetarget/target-core/internal/mqtt"
	"github.com/freetarget/target-core/internal/status"
	"github.com/freetarget/target-core/internal/web"
)

func main() {
	app := &cli.App{
		Name:  "freetarget",
		Usage: "electronic target acquisition daemon",
		Flags: config.Flags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.FromContext(c)
			if err != nil {
				return errors.Wrap(err, "config")
			}
			return run(cfg, c.Bool(config.FlagPrintState), c.Bool(config.FlagSelfTest))
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.Sugar(), nil
}

func run(cfg config.Config, printState, selfTest bool) error {
	// DIP switches are sampled once; a board without them runs on flags alone
	dip, dipErr := gpio.ReadDIP(cfg.Chip, cfg.Pins.DIP)
	if dipErr == nil {
		cfg.ApplyDIP(dip)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if dipErr != nil {
		logger.Warnw("dip switches unavailable", "error", dipErr)
	}

	switches, err := gpio.NewRealReader(cfg.Chip, cfg.Pins.SW1, cfg.Pins.SW2)
	if err != nil {
		return errors.Wrap(err, "init switches")
	}
	defer switches.Close()

	if printState {
		sw1, sw2, err := switches.Read()
		if err != nil {
			return errors.Wrap(err, "read switches")
		}
		fmt.Printf("SW1: %s, SW2: %s, DIP: %+v\n", switchString(sw1), switchString(sw2), cfg.DIP)
		return nil
	}

	clk := clock.New()

	sensors, err := gpio.NewSensors(cfg.Chip, cfg.Pins, cfg.Acquire.TickPeriod, logger.Named("gpio"))
	if err != nil {
		return errors.Wrap(err, "init sensors")
	}
	defer sensors.Close()

	paper, err := gpio.NewPaper(cfg.Chip, cfg.Pins.Paper, clk)
	if err != nil {
		return errors.Wrap(err, "init paper motor")
	}
	defer paper.Close()

	publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, logger.Named("mqtt"))
	if err != nil {
		return errors.Wrap(err, "init mqtt")
	}
	defer publisher.Close()

	acq := acquire.New(cfg.Acquire, sensors, gpio.MonotonicCounter{Period: cfg.Acquire.TickPeriod}, clk, logger.Named("acquire"))
	sensors.Bind(acq)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clk, cfg.Status())
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	} else {
		logger.Infow("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, logger.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	logger.Infow("started",
		"timeout", cfg.Acquire.Timeout,
		"tick", cfg.Acquire.TickPeriod,
		"poll", cfg.MFS.Interval,
		"mfs", cfg.Table.String(),
		"broker", cfg.Broker,
		"dip", cfg.DIP)

	ticker := clk.Ticker(cfg.MFS.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		cfg:        cfg,
		acq:        acq,
		decoder:    mfs.NewDecoder(cfg.MFS),
		switches:   switches,
		paper:      paper,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		clock:      clk,
		logger:     logger,
		selfTest:   selfTest,
	}
	return d.runLoop(ticker.C, sigCh)
}

func switchString(closed bool) string {
	if closed {
		return "CLOSED"
	}
	return "OPEN"
}
