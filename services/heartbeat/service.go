// Package heartbeat is the system tick. Each beat asks for one measurement
// cycle; the interval comes from config/heartbeat.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"time"

	"smartbin-go/bus"
	"smartbin-go/services/hal/util"
	"smartbin-go/types"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

type Service struct {
	// Beat runs on every tick. It must not block.
	Beat func()
	Log  io.Writer

	interval time.Duration
}

func New(beat func(), log io.Writer) *Service {
	if log == nil {
		log = io.Discard
	}
	return &Service{Beat: beat, Log: log, interval: types.DefaultHeartbeatInterval}
}

// Interval is the current tick period. Loop-owned once started.
func (s *Service) Interval() time.Duration { return s.interval }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	// A retained interval wins over the default before the first beat.
	select {
	case msg := <-cfgSub.Channel():
		s.apply(msg)
	default:
	}
	fmt.Fprintf(s.Log, "Measurements every %g seconds\r\n", s.interval.Seconds())

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if s.Beat != nil {
				s.Beat()
			}
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if s.apply(msg) {
				tick.Reset(s.interval)
				fmt.Fprintf(s.Log, "Measurements every %g seconds\r\n", s.interval.Seconds())
			}
		}
	}
}

// apply reports whether the interval changed.
func (s *Service) apply(msg *bus.Message) bool {
	var cfg types.HeartbeatConfig
	if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
		fmt.Fprintf(s.Log, "[heartbeat] config: %v\r\n", err)
		return false
	}
	if cfg.IntervalS <= 0 {
		fmt.Fprintf(s.Log, "[heartbeat] ignoring interval %g\r\n", cfg.IntervalS)
		return false
	}
	d := time.Duration(cfg.IntervalS * float64(time.Second))
	if d == s.interval {
		return false
	}
	s.interval = d
	return true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
