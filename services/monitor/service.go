// Package monitor runs the bin, lighting and irrigation logic on top of a
// platform.Board and reports over the bus.
//
// Topics:
//
//	monitor/value/bin            retained types.BinValue
//	monitor/value/pump           retained types.PumpValue
//	monitor/value/signals        retained types.SignalsValue
//	monitor/state/calibration    retained types.CalibrationValue
//	monitor/event/<bin|bulb>     types.NotificationEvent
//	monitor/control/<verb>       request; reply types.ControlReply
//
// Verbs: calibrate, measure, toggle_time, status.
package monitor

import (
	"context"
	"fmt"
	"io"

	"smartbin-go/bus"
	"smartbin-go/drivers/hcsr04"
	"smartbin-go/errcode"
	"smartbin-go/services/hal/gpioirq"
	"smartbin-go/services/hal/halcore"
	"smartbin-go/services/hal/platform"
	"smartbin-go/services/hal/util"
	"smartbin-go/types"
	"smartbin-go/x/edgex"
	"smartbin-go/x/irqflag"
	"smartbin-go/x/timex"
)

const (
	serviceName = "monitor"
	buttonName  = "button"
)

var (
	topicConfigMonitor = bus.T("config", "monitor")
	topicControl       = bus.T(serviceName, "control", "+")
	topicCalibration   = bus.T(serviceName, "state", "calibration")
)

func topicValue(k types.Kind) bus.Topic { return bus.T(serviceName, "value", string(k)) }
func topicEvent(k types.Kind) bus.Topic { return bus.T(serviceName, "event", string(k)) }

// Notification texts.
const (
	msgBinFull    = "EMPTY BIN - Bin is full and needs emptying"
	msgBinEmptied = "Bin has been emptied"
	msgBulbOut    = "Change bulb - light is off during nighttime"
	msgBulbOK     = "Bulb is working or daytime started"
)

type Service struct {
	board *platform.Board
	cfg   types.MonitorConfig
	log   io.Writer

	dev     *hcsr04.Device
	sampler *Sampler
	engine  *Engine

	irq     *gpioirq.Worker
	measure *irqflag.Flag

	bin, bulb edgex.Notifier
	night     bool // last good RTC reading

	conn *bus.Connection

	// last published values, loop-owned
	binV     types.BinValue
	pumpV    types.PumpValue
	signalsV types.SignalsValue
}

// New validates cfg and builds the measurement chain. Nothing touches the
// hardware until Start.
func New(board *platform.Board, cfg types.MonitorConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if board == nil || board.Trigger == nil || board.Echo == nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "monitor.new", Msg: "board lacks trigger/echo"}
	}
	log := board.Log
	if log == nil {
		log = io.Discard
	}
	s := &Service{
		board:   board,
		cfg:     cfg,
		log:     log,
		irq:     gpioirq.New(8, 4),
		measure: irqflag.New(),
	}
	var clk hcsr04.Clock
	if board.Clock != nil {
		clk = board.Clock
	}
	s.dev = hcsr04.New(board.Trigger, board.Echo, hcsr04.Config{
		TriggerWidth: cfg.TriggerWidth(),
		Clock:        clk,
	})
	s.sampler = NewSampler(s.dev, cfg.Samples, cfg.Settle())
	s.engine = NewEngine(s.sampler, engineConfig(cfg), log)

	s.bin = edgex.Notifier{Name: string(types.KindBin)}
	s.bin.OnEnter = func() { s.notify(types.KindBin, true, msgBinFull) }
	s.bin.OnClear = func() { s.notify(types.KindBin, false, msgBinEmptied) }
	s.bulb = edgex.Notifier{Name: string(types.KindBulb)}
	s.bulb.OnEnter = func() { s.notify(types.KindBulb, true, msgBulbOut) }
	s.bulb.OnClear = func() { s.notify(types.KindBulb, false, msgBulbOK) }
	return s, nil
}

func engineConfig(cfg types.MonitorConfig) EngineConfig {
	return EngineConfig{
		Attempts:     cfg.CalibrationAttempts,
		Gap:          cfg.CalibrationGap(),
		FullOffsetCM: cfg.FullOffsetCM,
	}
}

func (s *Service) Device() *hcsr04.Device { return s.dev }
func (s *Service) Engine() *Engine         { return s.engine }
func (s *Service) Sampler() *Sampler       { return s.sampler }

// RequestMeasurement asks the loop for one measurement cycle. Safe from
// interrupt context; requests made before the loop gets to them coalesce.
func (s *Service) RequestMeasurement() { s.measure.Set() }

// Start configures the hardware and launches the loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if err := s.setup(ctx); err != nil {
		return err
	}
	s.conn = conn
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) setup(ctx context.Context) error {
	b := s.board
	_ = b.Trigger.ConfigureOutput(false)
	_ = b.Echo.ConfigureInput(halcore.PullDown)
	if b.Motor != nil {
		_ = b.Motor.ConfigureOutput(false)
	}
	if b.Rain != nil {
		_ = b.Rain.ConfigureInput(halcore.PullUp)
	}
	err := s.dev.Attach(func(h func()) error { return b.Echo.SetIRQ(halcore.EdgeBoth, h) })
	if err != nil {
		return errcode.Wrap(errcode.Unsupported, "monitor.echo", err)
	}

	s.irq.Start(ctx)
	if b.Button != nil {
		_ = b.Button.ConfigureInput(halcore.PullUp)
		if _, err := s.irq.RegisterInput(buttonName, b.Button, halcore.EdgeFalling, s.cfg.ButtonDebounce(), false); err != nil {
			fmt.Fprintf(s.log, "[monitor] button disabled: %v\r\n", err)
		}
	}

	fmt.Fprintf(s.log, "CodeCraft system started\r\n")
	s.initRTC()
	return nil
}

// initRTC applies InitialTimeUnix, bumps the boot counter in RTC RAM and
// prints the current time.
func (s *Service) initRTC() {
	b := s.board
	if b.RTC == nil {
		return
	}
	if s.cfg.InitialTimeUnix != 0 {
		if err := b.RTC.SetTime(timeFromUnix(s.cfg.InitialTimeUnix)); err != nil {
			fmt.Fprintf(s.log, "[monitor] rtc set: %v\r\n", err)
		}
	}
	if b.RAM != nil {
		n, err := b.RAM.ReadRAM(0)
		if err == nil {
			err = b.RAM.WriteRAM(0, n+1)
		}
		if err != nil {
			fmt.Fprintf(s.log, "[monitor] boot counter: %v\r\n", err)
		} else {
			fmt.Fprintf(s.log, "Boot count %d\r\n", n+1)
		}
	}
	fmt.Fprintf(s.log, "Current Time is %s\r\n", s.clock())
	s.readNight()
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigMonitor)
	defer conn.Unsubscribe(cfgSub)
	ctrlSub := conn.Subscribe(topicControl)
	defer conn.Unsubscribe(ctrlSub)
	defer s.shutdown()

	// Retained config arrives before anything else; apply it so the first
	// calibration already uses it.
	select {
	case msg := <-cfgSub.Channel():
		s.applyConfig(msg)
	default:
	}

	s.calibrate(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.measure.C():
			if s.measure.Take() {
				s.cycle(ctx)
			}

		case ev := <-s.irq.Events():
			if ev.Name == buttonName && ev.Edge == halcore.EdgeFalling {
				s.toggleTime()
			}

		case msg, ok := <-ctrlSub.Channel():
			if !ok {
				return
			}
			s.handleControl(ctx, msg)

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			s.applyConfig(msg)
		}
	}
}

func (s *Service) shutdown() {
	if s.board.Motor != nil {
		s.board.Motor.Set(false)
	}
	_ = s.board.Echo.ClearIRQ()
}

// applyConfig merges a config/monitor document. Invalid documents are
// logged and ignored.
func (s *Service) applyConfig(msg *bus.Message) {
	var cfg types.MonitorConfig
	if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
		fmt.Fprintf(s.log, "[monitor] config: %v\r\n", err)
		return
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(s.log, "[monitor] config: %v\r\n", err)
		return
	}
	s.cfg = cfg
	s.sampler.n, s.sampler.settle = cfg.Samples, cfg.Settle()
	s.engine.SetConfig(engineConfig(cfg))
}

func (s *Service) calibrate(ctx context.Context) error {
	err := s.engine.Calibrate(ctx)
	s.publish(topicCalibration, s.engine.Snapshot(), true)
	return err
}

// cycle is one measurement request: bin, bulb, then pump.
func (s *Service) cycle(ctx context.Context) {
	full, cm, err := s.engine.IsBinFull(ctx)
	ref, calibrated := s.engine.Reference()
	s.binV = types.BinValue{
		Full:        full,
		DistanceCM:  cm,
		ReferenceCM: ref,
		Calibrated:  calibrated,
		TS:          timex.NowMs(),
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.binV.Error = string(errcode.Of(err))
		fmt.Fprintf(s.log, "[monitor] measure: %v\r\n", err)
	}
	s.publish(topicValue(types.KindBin), s.binV, true)
	s.bin.Update(full)

	sig := s.readSignals()
	s.bulb.Update(sig.LightOff && sig.Night)

	on := PumpOn(sig.SoilDry, sig.Night, sig.Raining)
	if s.board.Motor != nil {
		s.board.Motor.Set(on)
	}
	s.pumpV = types.PumpValue{On: on, TS: sig.TS}
	s.publish(topicValue(types.KindPump), s.pumpV, true)
}

func (s *Service) readSignals() types.SignalsValue {
	b := s.board
	sig := types.SignalsValue{TS: timex.NowMs()}
	if b.Light != nil {
		sig.LightOff = LightOff(b.Light, s.cfg.LightOffLevel)
	}
	if b.Soil != nil {
		sig.SoilPct = SoilPercent(b.Soil.Get(), s.cfg)
		sig.SoilDry = SoilDry(sig.SoilPct, s.cfg)
	}
	if b.Rain != nil {
		sig.Raining = Raining(b.Rain)
	}
	sig.Night = s.readNight()
	sig.Clock = s.clock()
	s.signalsV = sig
	s.publish(topicValue(types.KindSignals), sig, true)
	return sig
}

// readNight refreshes the day/night flag. On an RTC error the previous
// value stands.
func (s *Service) readNight() bool {
	if s.board.RTC == nil {
		return s.night
	}
	t, err := s.board.RTC.ReadTime()
	if err != nil {
		fmt.Fprintf(s.log, "[monitor] rtc: %v\r\n", err)
		return s.night
	}
	s.night = Night(t, s.cfg)
	return s.night
}

func (s *Service) toggleTime() error {
	if s.board.RTC == nil {
		return &errcode.E{C: errcode.Unsupported, Op: "monitor.toggle_time", Msg: "no rtc"}
	}
	night := s.readNight()
	if err := s.board.RTC.SetTime(ToggleTarget(night, s.cfg)); err != nil {
		fmt.Fprintf(s.log, "[monitor] toggle: %v\r\n", err)
		return err
	}
	s.readNight()
	fmt.Fprintf(s.log, "Time changed %s\r\n", s.clock())
	return nil
}

// clock formats the RTC time as [hh:mm:ss].
func (s *Service) clock() string {
	if s.board.RTC == nil {
		return "[--:--:--]"
	}
	t, err := s.board.RTC.ReadTime()
	if err != nil {
		return "[--:--:--]"
	}
	return timex.HMS(t)
}

func (s *Service) notify(k types.Kind, active bool, text string) {
	clk := s.clock()
	fmt.Fprintf(s.log, "%s %s\r\n", text, clk)
	s.publish(topicEvent(k), types.NotificationEvent{
		Signal:  k,
		Active:  active,
		Message: text,
		Clock:   clk,
		TS:      timex.NowMs(),
	}, false)
}

func (s *Service) publish(t bus.Topic, payload any, retained bool) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(t, payload, retained))
}

// ---- control ----

func (s *Service) handleControl(ctx context.Context, msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)
	var (
		val any
		err error
	)
	switch verb {
	case "calibrate":
		err = s.calibrate(ctx)
		val = s.engine.Snapshot()
	case "measure":
		s.cycle(ctx)
		val = s.binV
	case "toggle_time":
		err = s.toggleTime()
		val = s.clock()
	case "status":
		val = s.Status()
	default:
		err = &errcode.E{C: errcode.UnknownVerb, Op: "monitor.control", Msg: verb}
	}
	reply := types.ControlReply{OK: err == nil, Value: val}
	if err != nil {
		reply.Error = err.Error()
	}
	s.conn.Reply(msg, reply, false)
}

// Status is the loop's view of the world. Call it from the loop (or
// before Start).
func (s *Service) Status() types.StatusValue {
	return types.StatusValue{
		Calibration: s.engine.Snapshot(),
		Bin:         s.binV,
		Pump:        s.pumpV,
		Signals:     s.signalsV,
		EchoCount:   s.dev.Seq(),
		ISRDrops:    s.irq.ISRDrops(),
	}
}
