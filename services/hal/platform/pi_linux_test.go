//go:build linux && !tinygo

package platform

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"smartbin-go/services/hal/halcore"

	"smartbin-go/errcode"

	qt "github.com/frankban/quicktest"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"periph.io/x/periph/conn/i2c"
)

func TestPiPinOutputAndInput(t *testing.T) {
	c := qt.New(t)
	gp := &gpiotest.Pin{N: "GPIO17", Num: 17}
	p := NewPiPin(gp)

	c.Assert(p.ConfigureOutput(true), qt.IsNil)
	c.Assert(p.Get(), qt.IsTrue)
	p.Toggle()
	c.Assert(gp.Read(), qt.Equals, gpio.Low)
	c.Assert(p.Number(), qt.Equals, 17)

	c.Assert(p.ConfigureInput(halcore.PullUp), qt.IsNil)
	c.Assert(p.pull, qt.Equals, gpio.PullUp)
}

func TestPiPinDeliversEdges(t *testing.T) {
	c := qt.New(t)
	edges := make(chan gpio.Level, 4)
	gp := &gpiotest.Pin{N: "GPIO24", Num: 24, EdgesChan: edges}
	p := NewPiPin(gp)
	c.Assert(p.ConfigureInput(halcore.PullDown), qt.IsNil)

	var rises, falls atomic.Int32
	c.Assert(p.SetIRQ(halcore.EdgeBoth, func() {
		if p.Get() {
			rises.Add(1)
		} else {
			falls.Add(1)
		}
	}), qt.IsNil)

	edges <- gpio.High
	edges <- gpio.Low

	deadline := time.Now().Add(time.Second)
	for rises.Load()+falls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Assert(rises.Load(), qt.Equals, int32(1))
	c.Assert(falls.Load(), qt.Equals, int32(1))

	c.Assert(p.ClearIRQ(), qt.IsNil)
	// A second clear is a no-op.
	c.Assert(p.ClearIRQ(), qt.IsNil)

	edges <- gpio.High
	time.Sleep(20 * time.Millisecond)
	c.Assert(rises.Load(), qt.Equals, int32(1))
}

func TestDigitalADC(t *testing.T) {
	c := qt.New(t)
	gp := &gpiotest.Pin{N: "GPIO5", Num: 5}
	a := DigitalADC{Pin: NewPiPin(gp)}

	c.Assert(a.Get(), qt.Equals, uint16(0))
	gp.L = gpio.High
	c.Assert(a.Get(), qt.Equals, uint16(0xFFFF))
}

// haltPin counts Halt calls on a test pin.
type haltPin struct {
	*gpiotest.Pin
	halts int
}

func (h *haltPin) Halt() error {
	h.halts++
	return nil
}

type piRegistry struct {
	pins    map[string]*haltPin
	missing string
}

func newPiRegistry(missing string) *piRegistry {
	return &piRegistry{pins: map[string]*haltPin{}, missing: missing}
}

func (r *piRegistry) byName(name string) gpio.PinIO {
	if name == r.missing {
		return nil
	}
	p := &haltPin{Pin: &gpiotest.Pin{N: name}}
	r.pins[name] = p
	return p
}

func (r *piRegistry) halted() int {
	n := 0
	for _, p := range r.pins {
		n += p.halts
	}
	return n
}

func TestNewPiBoard_MissingPinReleasesOpened(t *testing.T) {
	c := qt.New(t)
	reg := newPiRegistry("GPIO27") // rain, after trigger, echo and motor
	opened := false
	b, err := newPiBoard(PiConfig{}, reg.byName, func(string) (i2c.BusCloser, error) {
		opened = true
		return nil, nil
	})
	c.Assert(b, qt.IsNil)
	c.Assert(errcode.Of(err), qt.Equals, errcode.UnknownPin)
	c.Assert(opened, qt.IsFalse)
	c.Assert(reg.pins, qt.HasLen, 3)
	c.Assert(reg.halted(), qt.Equals, 3)
}

func TestNewPiBoard_I2COpenFailureReleasesPins(t *testing.T) {
	c := qt.New(t)
	reg := newPiRegistry("")
	b, err := newPiBoard(PiConfig{}, reg.byName, func(string) (i2c.BusCloser, error) {
		return nil, errors.New("no i2c bus")
	})
	c.Assert(b, qt.IsNil)
	c.Assert(errcode.Of(err), qt.Equals, errcode.RTCError)
	c.Assert(reg.pins, qt.HasLen, 7)
	c.Assert(reg.halted(), qt.Equals, 7)
}
