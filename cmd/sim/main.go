//go:build !rp2040 && !rp2350

// Command sim runs the controller against the simulated board. The
// console takes the monitor verbs plus knobs for the simulated world; with
// -demo a bin fills and empties and a night passes on its own.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/relvacode/iso8601"

	"smartbin-go/errcode"
	"smartbin-go/services/console"
	"smartbin-go/services/hal/platform"
	"smartbin-go/services/system"
)

func main() {
	distance := flag.Uint("distance", 60, "initial distance to the bin floor (cm)")
	demo := flag.Bool("demo", false, "run the scripted fill/empty scenario")
	device := flag.String("device", "sim", "embedded config to load")
	start := flag.String("start", "", "initial RTC time, ISO 8601 (default 2025-09-10T10:00:00Z)")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))

	cfg := platform.SimConfig{
		DistanceCM: uint32(*distance),
		Light:      0x2000,
		Soil:       2000 << 4,
	}
	if *start != "" {
		t, err := iso8601.Parse([]byte(*start))
		if err != nil {
			slog.Error("start time", slog.String("value", *start), slog.Any("err", err))
			os.Exit(2)
		}
		cfg.Start = t.UTC()
	}
	sb, err := platform.NewSimBoard(cfg)
	if err != nil {
		slog.Error("sim", slog.Any("err", err))
		os.Exit(1)
	}
	defer sb.Close()
	sb.Console = os.Stdin

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := system.Start(ctx, sb.Board, system.Options{Device: *device, Extra: knobs(sb)}); err != nil {
		slog.Error("start", slog.Any("err", err))
		os.Exit(1)
	}
	if *demo {
		slog.Info("demo scenario running")
		go runDemo(ctx, sb)
	}
	<-ctx.Done()
	slog.Info("stopping")
}

func knobs(sb *platform.SimBoard) map[string]console.Command {
	parseUint := func(args []string, bits int) (uint64, error) {
		if len(args) != 1 {
			return 0, &errcode.E{C: errcode.InvalidParams, Op: "sim", Msg: "one value expected"}
		}
		return strconv.ParseUint(args[0], 0, bits)
	}
	onOff := func(args []string) (bool, error) {
		if len(args) != 1 {
			return false, &errcode.E{C: errcode.InvalidParams, Op: "sim", Msg: "on or off expected"}
		}
		switch args[0] {
		case "on", "1", "true":
			return true, nil
		case "off", "0", "false":
			return false, nil
		}
		return false, &errcode.E{C: errcode.InvalidParams, Op: "sim", Msg: args[0]}
	}
	return map[string]console.Command{
		"distance": {Help: "<cm> set the echo distance", Run: func(a []string) error {
			v, err := parseUint(a, 32)
			if err == nil {
				sb.SetDistance(uint32(v))
			}
			return err
		}},
		"light": {Help: "<raw16> set the photoresistor ADC", Run: func(a []string) error {
			v, err := parseUint(a, 16)
			if err == nil {
				sb.LightADC.Store(uint16(v))
			}
			return err
		}},
		"soil": {Help: "<raw12> set the soil probe ADC", Run: func(a []string) error {
			v, err := parseUint(a, 12)
			if err == nil {
				sb.SoilADC.Store(uint16(v) << 4)
			}
			return err
		}},
		"rain": {Help: "on|off", Run: func(a []string) error {
			on, err := onOff(a)
			if err == nil {
				sb.SetRaining(on)
			}
			return err
		}},
		"noecho": {Help: "on|off drop the echo", Run: func(a []string) error {
			on, err := onOff(a)
			if err == nil {
				sb.SetNoEcho(on)
			}
			return err
		}},
		"button": {Help: "press the time toggle button", Run: func([]string) error {
			sb.PressButton()
			return nil
		}},
	}
}

// runDemo fills the bin over a minute, empties it, then makes it dark and
// dry so the bulb and pump rules fire.
func runDemo(ctx context.Context, sb *platform.SimBoard) {
	step := func(d time.Duration, f func()) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			f()
			return true
		}
	}
	// Wait out calibration.
	if !step(5*time.Second, func() {}) {
		return
	}
	for cm := uint32(60); cm >= 30; cm -= 5 {
		cm := cm
		if !step(3*time.Second, func() { sb.SetDistance(cm) }) {
			return
		}
	}
	_ = step(6*time.Second, func() { sb.SetDistance(60) }) &&
		step(3*time.Second, func() { sb.SoilADC.Store(3800 << 4) }) &&
		step(6*time.Second, func() { sb.LightADC.Store(0xF000) }) &&
		step(3*time.Second, sb.PressButton) &&
		step(6*time.Second, sb.PressButton)
}
