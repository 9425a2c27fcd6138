// services/hal/platform/sim.go
//go:build !rp2040 && !rp2350

package platform

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"smartbin-go/services/hal/halcore"
)

// SimConfig seeds the simulated environment.
type SimConfig struct {
	DistanceCM uint32
	// EchoDelay is the gap between the trigger falling and the echo rising
	// (the 8-cycle burst on real modules). Default 200 µs.
	EchoDelay time.Duration
	Light     uint16
	Soil      uint16
	Raining   bool
	// Start is the initial RTC time. Default 2025-09-10 10:00:00 UTC.
	Start time.Time
	Log   io.Writer
}

// SimClock is a manually advanced microsecond clock. The simulated echo
// advances it by exactly the pulse width, so simulated distances are
// reproduced without scheduler jitter.
type SimClock struct {
	us atomic.Uint64
}

func (c *SimClock) Micros() uint64   { return c.us.Load() }
func (c *SimClock) Advance(us uint64) { c.us.Add(us) }

// SimBoard is a Board backed by fakes plus handles to script them.
type SimBoard struct {
	*Board

	Pins     *HostPinFactory
	I2C      *HostI2C
	LightADC *FakeADC
	SoilADC  *FakeADC
	SimClock *SimClock

	distance  atomic.Uint32
	noEcho    atomic.Bool
	triggers  atomic.Uint32
	echoDelay time.Duration
}

func NewSimBoard(cfg SimConfig) (*SimBoard, error) {
	if cfg.EchoDelay <= 0 {
		cfg.EchoDelay = 200 * time.Microsecond
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2025, 9, 10, 10, 0, 0, 0, time.UTC)
	}
	if cfg.Log == nil {
		cfg.Log = os.Stdout
	}

	pins := DefaultPinFactory().(*HostPinFactory)
	bus, _ := DefaultI2CFactory().ByID("i2c0")
	i2c := bus.(*HostI2C)

	sb := &SimBoard{
		Pins:      pins,
		I2C:       i2c,
		LightADC:  &FakeADC{},
		SoilADC:   &FakeADC{},
		SimClock:  &SimClock{},
		echoDelay: cfg.EchoDelay,
	}
	sb.distance.Store(cfg.DistanceCM)
	sb.LightADC.Store(cfg.Light)
	sb.SoilADC.Store(cfg.Soil)

	rtc := NewDS3231Clock(i2c)
	if err := rtc.SetTime(cfg.Start); err != nil {
		return nil, err
	}

	sb.Board = &Board{
		Name:    "sim",
		Trigger: pins.Pin(PinTrigger),
		Echo:    pins.Pin(PinEcho),
		Motor:   pins.Pin(PinMotor),
		Rain:    pins.Pin(PinRain),
		Button:  pins.Pin(PinButton),
		Light:   sb.LightADC,
		Soil:    sb.SoilADC,
		RTC:     rtc,
		RAM:     &FakeRAM{},
		Clock:   sb.SimClock,
		Log:     cfg.Log,
	}

	// The module answers every trigger pulse on its own; hook the falling
	// edge of the trigger line.
	trig := pins.Pin(PinTrigger)
	_ = trig.SetIRQ(halcore.EdgeFalling, sb.onTrigger)
	sb.onClose(trig.ClearIRQ)

	// Idle levels of the pulled-up inputs.
	sb.SetRaining(cfg.Raining)
	pins.Pin(PinButton).Set(true)
	return sb, nil
}

func (sb *SimBoard) onTrigger() {
	sb.triggers.Add(1)
	if sb.noEcho.Load() {
		return
	}
	us := PulseForCM(sb.distance.Load())
	echo := sb.Pins.Pin(PinEcho)
	time.AfterFunc(sb.echoDelay, func() {
		echo.Set(true)
		sb.SimClock.Advance(uint64(us))
		echo.Set(false)
	})
}

// PulseForCM is the shortest echo width that reads back as cm.
func PulseForCM(cm uint32) uint32 {
	return uint32((uint64(cm)*20000 + 342) / 343)
}

// SetDistance changes what the next echo reports.
func (sb *SimBoard) SetDistance(cm uint32) { sb.distance.Store(cm) }

// SetNoEcho makes the module ignore triggers, leaving readings stale.
func (sb *SimBoard) SetNoEcho(on bool) { sb.noEcho.Store(on) }

// Triggers counts trigger pulses seen by the module.
func (sb *SimBoard) Triggers() uint32 { return sb.triggers.Load() }

// SetRaining drives the rain sensor output (active low).
func (sb *SimBoard) SetRaining(on bool) { sb.Pins.Pin(PinRain).Set(!on) }

// PressButton produces one press and release on the pulled-up button.
func (sb *SimBoard) PressButton() {
	b := sb.Pins.Pin(PinButton)
	b.Set(false)
	b.Set(true)
}

// MotorOn reports the pump output.
func (sb *SimBoard) MotorOn() bool { return sb.Pins.Pin(PinMotor).Get() }

// Default returns the board for this build: on hosts, a simulated bin
// with lights on and moist soil, driven from stdin.
func Default() (*Board, error) {
	sb, err := NewSimBoard(SimConfig{DistanceCM: 60, Light: 0x2000, Soil: 2000 << 4})
	if err != nil {
		return nil, err
	}
	sb.Console = os.Stdin
	return sb.Board, nil
}
