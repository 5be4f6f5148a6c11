// Package config resolves the daemon settings from command-line flags and
// FREETARGET_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/gpio"
	"github.com/freetarget/target-core/internal/mfs"
	"github.com/freetarget/target-core/internal/status"
)

// Flag names.
const (
	FlagPoll            = "poll"
	FlagDebounceSamples = "debounce-samples"
	FlagTap             = "tap"
	FlagHold            = "hold"
	FlagTimeout         = "timeout"
	FlagTick            = "tick"
	FlagMFS             = "mfs"
	FlagPaperFeed       = "paper-feed"
	FlagPaperShot       = "paper-shot"
	FlagHeartbeat       = "heartbeat"
	FlagBroker          = "broker"
	FlagClientID        = "client-id"
	FlagHTTP            = "http"
	FlagChip            = "chip"
	FlagPinNorth        = "pin-north"
	FlagPinEast         = "pin-east"
	FlagPinSouth        = "pin-south"
	FlagPinWest         = "pin-west"
	FlagPinFace         = "pin-face"
	FlagPinSW1          = "pin-sw1"
	FlagPinSW2          = "pin-sw2"
	FlagPinPaper        = "pin-paper"
	FlagPinDIP          = "pin-dip"
	FlagVerbose         = "verbose"
	FlagPrintState      = "print-state"
	FlagSelfTest        = "self-test"
)

const envPrefix = "FREETARGET_"

// Config is the resolved daemon configuration.
type Config struct {
	Acquire   acquire.Config
	MFS       mfs.Config
	Table     mfs.Table
	PaperFeed time.Duration
	PaperShot time.Duration
	Heartbeat time.Duration
	Broker    string
	ClientID  string
	HTTPAddr  string
	Chip      string
	Pins      gpio.Pins
	Verbose   bool
	// DIP is sampled from the board after GPIO init.
	DIP gpio.DIP
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		Acquire:   acquire.DefaultConfig(),
		MFS:       mfs.DefaultConfig(),
		Table:     mfs.NewTable(mfs.DefaultWord),
		PaperFeed: time.Second,
		PaperShot: 200 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		Broker:    "tcp://127.0.0.1:1883",
		ClientID:  "freetarget",
		HTTPAddr:  ":80",
		Chip:      "gpiochip0",
		Pins:      gpio.DefaultPins(),
	}
}

func env(name string) []string {
	return []string{envPrefix + name}
}

// Flags returns the CLI flags, defaulted from Default.
func Flags() []cli.Flag {
	d := Default()
	pins := d.Pins
	return []cli.Flag{
		&cli.DurationFlag{Name: FlagPoll, Value: d.MFS.Interval, EnvVars: env("POLL"), Usage: "switch sampling interval"},
		&cli.IntFlag{Name: FlagDebounceSamples, Value: d.MFS.DebounceSamples, EnvVars: env("DEBOUNCE_SAMPLES"), Usage: "agreeing samples needed to change a switch level"},
		&cli.DurationFlag{Name: FlagTap, Value: d.MFS.TapMin, EnvVars: env("TAP"), Usage: "shortest press that counts as a tap"},
		&cli.DurationFlag{Name: FlagHold, Value: d.MFS.HoldMin, EnvVars: env("HOLD"), Usage: "shortest press that counts as a hold"},
		&cli.DurationFlag{Name: FlagTimeout, Value: d.Acquire.Timeout, EnvVars: env("TIMEOUT"), Usage: "acquisition timeout measured from the first trip"},
		&cli.DurationFlag{Name: FlagTick, Value: d.Acquire.TickPeriod, EnvVars: env("TICK"), Usage: "timer counter tick period"},
		&cli.StringFlag{Name: FlagMFS, Value: d.Table.String(), EnvVars: env("MFS"), Usage: "MFS action table, one digit per gesture (HOLD12 TAP2 TAP1 HOLD2 HOLD1)"},
		&cli.DurationFlag{Name: FlagPaperFeed, Value: d.PaperFeed, EnvVars: env("PAPER_FEED"), Usage: "paper motor run time for PAPER_FEED"},
		&cli.DurationFlag{Name: FlagPaperShot, Value: d.PaperShot, EnvVars: env("PAPER_SHOT"), Usage: "paper motor run time for PAPER_SHOT"},
		&cli.DurationFlag{Name: FlagHeartbeat, Value: d.Heartbeat, EnvVars: env("HEARTBEAT"), Usage: "heartbeat interval (0 to disable)"},
		&cli.StringFlag{Name: FlagBroker, Value: d.Broker, EnvVars: env("BROKER"), Usage: "MQTT broker address"},
		&cli.StringFlag{Name: FlagClientID, Value: d.ClientID, EnvVars: env("CLIENT_ID"), Usage: "MQTT client id"},
		&cli.StringFlag{Name: FlagHTTP, Value: d.HTTPAddr, EnvVars: env("HTTP"), Usage: "HTTP status address (empty to disable)"},
		&cli.StringFlag{Name: FlagChip, Value: d.Chip, EnvVars: env("CHIP"), Usage: "GPIO chip name"},
		&cli.IntFlag{Name: FlagPinNorth, Value: pins.Sensor[acquire.North], EnvVars: env("PIN_NORTH"), Usage: "BCM pin for the north sensor"},
		&cli.IntFlag{Name: FlagPinEast, Value: pins.Sensor[acquire.East], EnvVars: env("PIN_EAST"), Usage: "BCM pin for the east sensor"},
		&cli.IntFlag{Name: FlagPinSouth, Value: pins.Sensor[acquire.South], EnvVars: env("PIN_SOUTH"), Usage: "BCM pin for the south sensor"},
		&cli.IntFlag{Name: FlagPinWest, Value: pins.Sensor[acquire.West], EnvVars: env("PIN_WEST"), Usage: "BCM pin for the west sensor"},
		&cli.IntFlag{Name: FlagPinFace, Value: pins.Face, EnvVars: env("PIN_FACE"), Usage: "BCM pin for the face strike sensor"},
		&cli.IntFlag{Name: FlagPinSW1, Value: pins.SW1, EnvVars: env("PIN_SW1"), Usage: "BCM pin for switch 1"},
		&cli.IntFlag{Name: FlagPinSW2, Value: pins.SW2, EnvVars: env("PIN_SW2"), Usage: "BCM pin for switch 2"},
		&cli.IntFlag{Name: FlagPinPaper, Value: pins.Paper, EnvVars: env("PIN_PAPER"), Usage: "BCM pin for the paper motor"},
		&cli.IntSliceFlag{Name: FlagPinDIP, Value: cli.NewIntSlice(pins.DIP[:]...), EnvVars: env("PIN_DIP"), Usage: "BCM pins for DIP_0..DIP_3"},
		&cli.BoolFlag{Name: FlagVerbose, Aliases: []string{"v"}, EnvVars: env("VERBOSE"), Usage: "debug logging"},
		&cli.BoolFlag{Name: FlagPrintState, Usage: "print switch and DIP state and exit"},
		&cli.BoolFlag{Name: FlagSelfTest, Usage: "force a full trip after arming to check the publish path"},
	}
}

// FromContext builds a Config from parsed flags and validates it.
func FromContext(c *cli.Context) (Config, error) {
	cfg := Default()

	cfg.MFS.Interval = c.Duration(FlagPoll)
	cfg.MFS.DebounceSamples = c.Int(FlagDebounceSamples)
	cfg.MFS.TapMin = c.Duration(FlagTap)
	cfg.MFS.HoldMin = c.Duration(FlagHold)
	cfg.Acquire.Timeout = c.Duration(FlagTimeout)
	cfg.Acquire.TickPeriod = c.Duration(FlagTick)
	cfg.PaperFeed = c.Duration(FlagPaperFeed)
	cfg.PaperShot = c.Duration(FlagPaperShot)
	cfg.Heartbeat = c.Duration(FlagHeartbeat)
	cfg.Broker = c.String(FlagBroker)
	cfg.ClientID = c.String(FlagClientID)
	cfg.HTTPAddr = c.String(FlagHTTP)
	cfg.Chip = c.String(FlagChip)
	cfg.Verbose = c.Bool(FlagVerbose)

	cfg.Pins.Sensor = [acquire.NumDirections]int{
		c.Int(FlagPinNorth), c.Int(FlagPinEast), c.Int(FlagPinSouth), c.Int(FlagPinWest),
	}
	cfg.Pins.Face = c.Int(FlagPinFace)
	cfg.Pins.SW1 = c.Int(FlagPinSW1)
	cfg.Pins.SW2 = c.Int(FlagPinSW2)
	cfg.Pins.Paper = c.Int(FlagPinPaper)

	var err error
	dip := c.IntSlice(FlagPinDIP)
	if len(dip) != len(cfg.Pins.DIP) {
		err = multierr.Append(err, errors.Errorf("%s needs %d pins, got %d", FlagPinDIP, len(cfg.Pins.DIP), len(dip)))
	} else {
		copy(cfg.Pins.DIP[:], dip)
	}

	table, tErr := mfs.ParseTable(c.String(FlagMFS))
	if tErr != nil {
		err = multierr.Append(err, tErr)
	}
	cfg.Table = table

	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var err error
	if c.Acquire.Timeout <= 0 {
		err = multierr.Append(err, errors.New("timeout must be positive"))
	}
	if c.Acquire.TickPeriod <= 0 {
		err = multierr.Append(err, errors.New("tick must be positive"))
	}
	err = multierr.Append(err, c.MFS.Validate())
	if c.PaperFeed < 0 || c.PaperShot < 0 {
		err = multierr.Append(err, errors.New("paper durations must not be negative"))
	}
	if c.Heartbeat < 0 {
		err = multierr.Append(err, errors.New("heartbeat must not be negative"))
	}
	if c.Broker == "" {
		err = multierr.Append(err, errors.New("broker is required"))
	}

	seen := make(map[int]string)
	claim := func(pin int, name string) {
		if pin < 0 {
			err = multierr.Append(err, errors.Errorf("%s: invalid pin %d", name, pin))
			return
		}
		if other, ok := seen[pin]; ok {
			err = multierr.Append(err, errors.Errorf("%s: pin %d already used by %s", name, pin, other))
			return
		}
		seen[pin] = name
	}
	for _, d := range acquire.Directions {
		claim(c.Pins.Sensor[d], d.String())
	}
	claim(c.Pins.Face, "FACE")
	claim(c.Pins.SW1, "SW1")
	claim(c.Pins.SW2, "SW2")
	claim(c.Pins.Paper, "PAPER")
	for i, p := range c.Pins.DIP {
		claim(p, fmt.Sprintf("DIP_%d", i))
	}
	return err
}

// ApplyDIP merges the DIP switch flags read at startup.
func (c *Config) ApplyDIP(dip gpio.DIP) {
	c.DIP = dip
	if dip.VerboseTrace {
		c.Verbose = true
	}
}

// Status returns the subset shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		PollMs:          c.MFS.Interval.Milliseconds(),
		DebounceSamples: c.MFS.DebounceSamples,
		TapMs:           c.MFS.TapMin.Milliseconds(),
		HoldMs:          c.MFS.HoldMin.Milliseconds(),
		TimeoutUs:       c.Acquire.Timeout.Microseconds(),
		TickNs:          c.Acquire.TickPeriod.Nanoseconds(),
		MFSTable:        c.Table.String(),
		HeartbeatMs:     c.Heartbeat.Milliseconds(),
		Broker:          c.Broker,
		HTTPPort:        c.HTTPAddr,
		Chip:            c.Chip,
	}
}
