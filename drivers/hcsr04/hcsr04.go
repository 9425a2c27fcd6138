// Package hcsr04 provides an interrupt-driven driver for the HC-SR04
// ultrasonic ranging module.
//
// The driver is split in two halves:
//
//	d.Start()            // poll side: fire a 10 µs trigger pulse, return at once
//	d.Edge()             // interrupt side: call on both edges of the echo line
//
// The rising edge starts a PulseTimer, the falling edge stops it and
// publishes a new Reading. Callers read the last published value with
// d.DistanceCM() / d.PulseUS() after leaving enough settle time (the
// sensor needs up to ~38 ms for an out-of-range echo; 100 ms is safe).
//
// There is no timeout: if the echo never falls the reading simply stays
// stale. Use d.Seq() to tell a fresh reading from an old one.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
package hcsr04

import (
	"errors"
	"sync/atomic"
	"time"

	"smartbin-go/x/mathx"
	"smartbin-go/x/timex"
)

// Speed of sound in m/s. Distance in cm is pulse_us * 343 / 20000: the
// round trip is halved and m/s is converted to cm/µs.
const (
	SpeedOfSound = 343
	distDivisor  = 20000
)

// DefaultTriggerWidth is the minimum trigger pulse from the datasheet.
const DefaultTriggerWidth = 10 * time.Microsecond

var ErrEmptyWindow = errors.New("hcsr04: empty sample window")

// Pin is the trigger output.
type Pin interface {
	Set(high bool)
}

// EchoPin is the echo input. Get is called from the edge handler.
type EchoPin interface {
	Get() bool
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// TriggerWidth defaults to DefaultTriggerWidth.
	TriggerWidth time.Duration
	// Clock defaults to timex.MonoClock.
	Clock Clock
	// Delay holds the trigger line high. Defaults to time.Sleep.
	Delay func(time.Duration)
}

// Reading is one completed echo.
type Reading struct {
	PulseUS    uint32
	DistanceCM uint32
}

func (r Reading) pack() uint64 { return uint64(r.PulseUS)<<32 | uint64(r.DistanceCM) }

func unpack(v uint64) Reading {
	return Reading{PulseUS: uint32(v >> 32), DistanceCM: uint32(v)}
}

// Edge describes one echo transition as seen by an EdgeHandler.
type Edge struct {
	Rising   bool
	AtMicros uint64
	// Reading is the value published by this edge (falling) or the
	// still-current value (rising).
	Reading Reading
}

// EdgeHandler observes echo edges after the driver has updated its own
// state. It runs in interrupt context: keep it short and non-blocking.
type EdgeHandler interface {
	HandleEdge(e Edge)
}

// EdgeHandlerFunc adapts a plain function to EdgeHandler.
type EdgeHandlerFunc func(e Edge)

func (f EdgeHandlerFunc) HandleEdge(e Edge) { f(e) }

type handlerBox struct{ h EdgeHandler }

// Device is one HC-SR04 wired to a trigger output and an echo input.
type Device struct {
	trigger Pin
	echo    EchoPin
	cfg     Config

	timer *PulseTimer

	last atomic.Uint64 // packed Reading, written only by Fall
	seq  atomic.Uint32 // completed falls

	rise atomic.Pointer[handlerBox]
	fall atomic.Pointer[handlerBox]
}

// New creates a Device. It drives the trigger low but does not hook the
// echo interrupt; wire d.Edge to both edges of the echo pin (see Attach).
func New(trigger Pin, echo EchoPin, cfgs ...Config) *Device {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.TriggerWidth < DefaultTriggerWidth {
		c.TriggerWidth = DefaultTriggerWidth
	}
	if c.Clock == nil {
		c.Clock = timex.MonoClock{}
	}
	if c.Delay == nil {
		c.Delay = time.Sleep
	}
	d := &Device{
		trigger: trigger,
		echo:    echo,
		cfg:     c,
		timer:   NewPulseTimer(c.Clock),
	}
	trigger.Set(false)
	return d
}

// Attach registers d.Edge with an interrupt source that reports both
// edges of the echo line.
func (d *Device) Attach(onBothEdges func(handler func()) error) error {
	return onBothEdges(d.Edge)
}

// Start fires one trigger pulse. It returns as soon as the trigger is
// released; the result arrives later through the echo edges. A Start
// before the previous echo has fallen makes the next rise restart timing.
func (d *Device) Start() {
	d.trigger.Set(true)
	d.cfg.Delay(d.cfg.TriggerWidth)
	d.trigger.Set(false)
}

// Edge is the both-edge interrupt handler: it samples the echo level and
// dispatches to Rise or Fall.
func (d *Device) Edge() {
	if d.echo.Get() {
		d.Rise()
	} else {
		d.Fall()
	}
}

// Rise handles the echo going high. A rise while the timer already runs
// (a fall was missed) restarts timing and discards the old measurement.
func (d *Device) Rise() {
	d.timer.Start()
	if b := d.rise.Load(); b != nil {
		b.h.HandleEdge(Edge{Rising: true, AtMicros: d.cfg.Clock.Micros(), Reading: d.Reading()})
	}
}

// Fall handles the echo going low: stop, convert, publish, reset.
// A fall with no preceding rise publishes nothing.
func (d *Device) Fall() {
	if !d.timer.Running() {
		return
	}
	d.timer.Stop()
	us := d.timer.ReadMicros()
	d.timer.Reset()

	if us > 0xFFFFFFFF {
		us = 0xFFFFFFFF
	}
	r := Reading{PulseUS: uint32(us), DistanceCM: DistanceFromPulse(uint32(us))}
	d.last.Store(r.pack())
	d.seq.Add(1)

	if b := d.fall.Load(); b != nil {
		b.h.HandleEdge(Edge{Rising: false, AtMicros: d.cfg.Clock.Micros(), Reading: r})
	}
}

// SetRiseHandler installs an extra observer for rising edges; nil removes it.
func (d *Device) SetRiseHandler(h EdgeHandler) { d.rise.Store(box(h)) }

// SetFallHandler installs an extra observer for falling edges; nil removes it.
func (d *Device) SetFallHandler(h EdgeHandler) { d.fall.Store(box(h)) }

func box(h EdgeHandler) *handlerBox {
	if h == nil {
		return nil
	}
	return &handlerBox{h: h}
}

// Reading returns the last published echo as one atomic load.
// Before the first echo it is the zero Reading.
func (d *Device) Reading() Reading { return unpack(d.last.Load()) }

// DistanceCM returns the last measured distance in centimetres.
func (d *Device) DistanceCM() uint32 { return d.Reading().DistanceCM }

// PulseUS returns the last measured echo width in microseconds.
func (d *Device) PulseUS() uint32 { return d.Reading().PulseUS }

// Seq counts completed echoes since New.
func (d *Device) Seq() uint32 { return d.seq.Load() }

// DistanceFromPulse converts an echo width to centimetres, truncating.
func DistanceFromPulse(us uint32) uint32 {
	return uint32(uint64(us) * SpeedOfSound / distDivisor)
}

// Filter returns the median of a sample window. measure is sorted in place.
func Filter(measure []uint32) (uint32, error) {
	v, err := mathx.Median(measure)
	if err != nil {
		return 0, ErrEmptyWindow
	}
	return v, nil
}
