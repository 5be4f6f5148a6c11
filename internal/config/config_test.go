package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/gpio"
	"github.com/freetarget/target-core/internal/mfs"
)

// parse runs args through a cli.App carrying Flags and returns the result of FromContext.
func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	var (
		cfg    Config
		cfgErr error
	)
	app := &cli.App{
		Name:  "freetarget",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, cfgErr = FromContext(c)
			return nil
		},
	}
	if err := app.Run(append([]string{"freetarget"}, args...)); err != nil {
		t.Fatalf("app.Run: %v", err)
	}
	return cfg, cfgErr
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestFromContextDefaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromContextFlags(t *testing.T) {
	cfg, err := parse(t,
		"--timeout", "2ms",
		"--tick", "1us",
		"--mfs", "99999",
		"--poll", "20ms",
		"--pin-north", "7",
		"--pin-dip", "1", "--pin-dip", "2", "--pin-dip", "3", "--pin-dip", "8",
		"--broker", "tcp://range:1883",
		"-v",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Acquire.Timeout != 2*time.Millisecond || cfg.Acquire.TickPeriod != time.Microsecond {
		t.Errorf("acquire config: got %+v", cfg.Acquire)
	}
	if cfg.Table.Lookup(mfs.Hold1) != mfs.TargetType || cfg.Table.Lookup(mfs.Hold12) != mfs.TargetType {
		t.Errorf("table: got %s", cfg.Table)
	}
	if cfg.MFS.Interval != 20*time.Millisecond {
		t.Errorf("poll: got %v", cfg.MFS.Interval)
	}
	if cfg.Pins.Sensor[acquire.North] != 7 {
		t.Errorf("north pin: got %d", cfg.Pins.Sensor[acquire.North])
	}
	if cfg.Pins.DIP != [4]int{1, 2, 3, 8} {
		t.Errorf("dip pins: got %v", cfg.Pins.DIP)
	}
	if cfg.Broker != "tcp://range:1883" || !cfg.Verbose {
		t.Errorf("broker=%q verbose=%v", cfg.Broker, cfg.Verbose)
	}
}

func TestFromContextEnv(t *testing.T) {
	t.Setenv("FREETARGET_TIMEOUT", "3ms")
	t.Setenv("FREETARGET_MFS", "12345")

	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Acquire.Timeout != 3*time.Millisecond {
		t.Errorf("timeout: got %v, want 3ms", cfg.Acquire.Timeout)
	}
	if cfg.Table.Word() != 12345 {
		t.Errorf("table: got %s, want 12345", cfg.Table)
	}
}

func TestFromContextFlagBeatsEnv(t *testing.T) {
	t.Setenv("FREETARGET_TIMEOUT", "3ms")

	cfg, err := parse(t, "--timeout", "4ms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Acquire.Timeout != 4*time.Millisecond {
		t.Errorf("timeout: got %v, want 4ms", cfg.Acquire.Timeout)
	}
}

func TestFromContextRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad table", []string{"--mfs", "1x"}, "mfs word"},
		{"long table", []string{"--mfs", "123456"}, "mfs word"},
		{"short dip", []string{"--pin-dip", "1", "--pin-dip", "2"}, "pin-dip needs 4 pins"},
		{"zero timeout", []string{"--timeout", "0s"}, "timeout must be positive"},
		{"tap above hold", []string{"--tap", "600ms"}, "0 < tap < hold"},
		{"pin clash", []string{"--pin-east", "5"}, "already used by NORTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Acquire.Timeout = 0
	cfg.Broker = ""
	cfg.Pins.Paper = -1

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("expected 3 errors, got %d: %v", got, err)
	}
}

func TestApplyDIP(t *testing.T) {
	cfg := Default()
	cfg.ApplyDIP(gpio.DIP{Calibrate: true})
	if cfg.Verbose {
		t.Error("verbose should stay off without VERBOSE_TRACE")
	}
	if !cfg.DIP.Calibrate {
		t.Error("DIP flags should be recorded")
	}

	cfg.ApplyDIP(gpio.DIP{VerboseTrace: true})
	if !cfg.Verbose {
		t.Error("VERBOSE_TRACE should enable verbose logging")
	}
}

func TestStatusConfig(t *testing.T) {
	sc := Default().Status()
	if sc.TimeoutUs != 5000 || sc.TickNs != 125 {
		t.Errorf("timing: got timeout=%dus tick=%dns", sc.TimeoutUs, sc.TickNs)
	}
	if sc.MFSTable != "54321" || sc.PollMs != 10 || sc.DebounceSamples != 3 {
		t.Errorf("mfs: got %+v", sc)
	}
	if sc.HeartbeatMs != (15 * time.Minute).Milliseconds() {
		t.Errorf("heartbeat: got %d", sc.HeartbeatMs)
	}
}
