// Package system wires the services onto one bus for a given board.
package system

import (
	"context"
	"fmt"
	"io"

	"smartbin-go/bus"
	"smartbin-go/services/config"
	"smartbin-go/services/console"
	"smartbin-go/services/hal/platform"
	"smartbin-go/services/heartbeat"
	"smartbin-go/services/monitor"
	"smartbin-go/types"
)

type Options struct {
	// Device selects the embedded config. Defaults to the board name.
	Device string
	// Monitor is the boot config, overridden by config/monitor. Zero
	// fields take the firmware defaults.
	Monitor types.MonitorConfig
	// Extra console commands.
	Extra map[string]console.Command
	// QueueLen is the bus subscription depth. Default 16.
	QueueLen int
}

type System struct {
	Bus       *bus.Bus
	Monitor   *monitor.Service
	Heartbeat *heartbeat.Service
	Console   *console.Console
}

// Start brings the services up in dependency order: config first so its
// retained documents are in place, then monitor, the tick and the console.
// A missing embedded config is logged and the defaults stand.
func Start(ctx context.Context, board *platform.Board, opts Options) (*System, error) {
	if opts.Device == "" {
		opts.Device = board.Name
	}
	if opts.QueueLen <= 0 {
		opts.QueueLen = 16
	}
	log := board.Log
	if log == nil {
		log = io.Discard
	}
	opts.Monitor.Defaults()

	s := &System{Bus: bus.NewBus(opts.QueueLen)}

	cfgSvc := config.NewConfigService(log)
	_ = cfgSvc.Start(config.WithDevice(ctx, opts.Device), s.Bus.NewConnection("config"))

	mon, err := monitor.New(board, opts.Monitor)
	if err != nil {
		return nil, err
	}
	if err := mon.Start(ctx, s.Bus.NewConnection("monitor")); err != nil {
		return nil, err
	}
	s.Monitor = mon

	s.Heartbeat = heartbeat.New(mon.RequestMeasurement, log)
	if err := s.Heartbeat.Start(ctx, s.Bus.NewConnection("heartbeat")); err != nil {
		return nil, err
	}

	s.Console = console.New(board.Console, log)
	for name, cmd := range opts.Extra {
		s.Console.Extra[name] = cmd
	}
	if err := s.Console.Start(ctx, s.Bus.NewConnection("console")); err != nil {
		return nil, err
	}
	fmt.Fprintf(log, "[system] %s up\r\n", opts.Device)
	return s, nil
}
