//go:build linux && !tinygo

// Command pi runs the controller on a Raspberry Pi with the sensors on the
// header GPIOs and a DS3231 on I²C. Pin names come from an optional TOML
// file; flags override it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/lmittmann/tint"

	"smartbin-go/services/hal/platform"
	"smartbin-go/services/system"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))

	var pc platform.PiConfig
	cfgPath := flag.String("config", "", "TOML file with pin names (trigger, echo, motor, rain, button, light, soil, i2c_bus)")
	trigger := flag.String("trigger", "", "HC-SR04 trigger pin (default GPIO23)")
	echo := flag.String("echo", "", "HC-SR04 echo pin (default GPIO24)")
	motor := flag.String("motor", "", "pump relay pin (default GPIO17)")
	i2c := flag.String("i2c", "", "I²C bus holding the DS3231 (default first)")
	device := flag.String("device", "pi", "embedded config to load")
	flag.Parse()

	if *cfgPath != "" {
		if _, err := toml.DecodeFile(*cfgPath, &pc); err != nil {
			slog.Error("config", slog.String("path", *cfgPath), slog.Any("err", err))
			os.Exit(1)
		}
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&pc.Trigger, *trigger)
	override(&pc.Echo, *echo)
	override(&pc.Motor, *motor)
	override(&pc.I2CBus, *i2c)

	board, err := platform.NewPiBoard(pc)
	if err != nil {
		slog.Error("board", slog.Any("err", err))
		os.Exit(1)
	}
	defer board.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := system.Start(ctx, board, system.Options{Device: *device}); err != nil {
		slog.Error("start", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("running", slog.String("device", *device))
	<-ctx.Done()
	slog.Info("stopping")
}
