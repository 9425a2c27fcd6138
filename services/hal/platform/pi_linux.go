// services/hal/platform/pi_linux.go
//go:build linux && !tinygo

package platform

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"smartbin-go/errcode"
	"smartbin-go/services/hal/halcore"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// PiConfig names the header pins (periph names such as "GPIO17") and the
// I²C bus carrying the DS3231. Light and soil modules are read through
// their digital comparator outputs: the Pi has no ADC.
type PiConfig struct {
	Trigger string `toml:"trigger"`
	Echo    string `toml:"echo"`
	Motor   string `toml:"motor"`
	Rain    string `toml:"rain"`
	Button  string `toml:"button"`
	Light   string `toml:"light"`
	Soil    string `toml:"soil"`
	I2CBus  string `toml:"i2c_bus"` // "" selects the first bus
}

func (c *PiConfig) defaults() {
	set := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	set(&c.Trigger, "GPIO23")
	set(&c.Echo, "GPIO24")
	set(&c.Motor, "GPIO17")
	set(&c.Rain, "GPIO27")
	set(&c.Button, "GPIO22")
	set(&c.Light, "GPIO5")
	set(&c.Soil, "GPIO6")
}

// NewPiBoard opens the periph host drivers and looks every pin up by name.
func NewPiBoard(cfg PiConfig) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "periph.init", err)
	}
	return newPiBoard(cfg, gpioreg.ByName, i2creg.Open)
}

// newPiBoard builds the board from the given registries. On error every
// pin and bus opened so far is released.
func newPiBoard(cfg PiConfig, byName func(string) gpio.PinIO, openI2C func(string) (i2c.BusCloser, error)) (_ *Board, err error) {
	cfg.defaults()
	b := &Board{Name: "pi", Log: os.Stdout, Console: os.Stdin}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	pin := func(name string) (*PiPin, error) {
		p := byName(name)
		if p == nil {
			return nil, &errcode.E{C: errcode.UnknownPin, Op: "pi.pin", Msg: name}
		}
		pp := NewPiPin(p)
		b.onClose(pp.release)
		return pp, nil
	}

	var light, soil *PiPin
	for _, x := range []struct {
		dst  *halcore.GPIOPin
		irq  *halcore.IRQPin
		name string
	}{
		{dst: &b.Trigger, name: cfg.Trigger},
		{irq: &b.Echo, name: cfg.Echo},
		{dst: &b.Motor, name: cfg.Motor},
		{dst: &b.Rain, name: cfg.Rain},
		{irq: &b.Button, name: cfg.Button},
	} {
		var p *PiPin
		if p, err = pin(x.name); err != nil {
			return nil, err
		}
		if x.dst != nil {
			*x.dst = p
		} else {
			*x.irq = p
		}
	}
	if light, err = pin(cfg.Light); err != nil {
		return nil, err
	}
	if soil, err = pin(cfg.Soil); err != nil {
		return nil, err
	}
	_ = light.ConfigureInput(halcore.PullNone)
	_ = soil.ConfigureInput(halcore.PullNone)
	b.Light = DigitalADC{Pin: light}
	b.Soil = DigitalADC{Pin: soil}

	bus, err := openI2C(cfg.I2CBus)
	if err != nil {
		return nil, errcode.Wrap(errcode.RTCError, "pi.i2c", err)
	}
	b.onClose(bus.Close)
	b.RTC = NewDS3231Clock(bus)
	return b, nil
}

// DigitalADC reads a comparator output as a full-scale or zero sample, so
// threshold logic written for analogue inputs still applies.
type DigitalADC struct {
	Pin halcore.GPIOPin
}

func (d DigitalADC) Get() uint16 {
	if d.Pin.Get() {
		return 0xFFFF
	}
	return 0
}

// ---- periph pin adaptor ----

// PiPin adapts a periph gpio.PinIO to halcore.IRQPin. Interrupts are
// delivered by a goroutine parked in WaitForEdge.
type PiPin struct {
	p    gpio.PinIO
	pull gpio.Pull

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
}

func NewPiPin(p gpio.PinIO) *PiPin { return &PiPin{p: p, pull: gpio.PullNoChange} }

func toPeriphPull(pull halcore.Pull) gpio.Pull {
	switch pull {
	case halcore.PullUp:
		return gpio.PullUp
	case halcore.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func toPeriphEdge(e halcore.Edge) gpio.Edge {
	switch e {
	case halcore.EdgeRising:
		return gpio.RisingEdge
	case halcore.EdgeFalling:
		return gpio.FallingEdge
	case halcore.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (r *PiPin) ConfigureInput(pull halcore.Pull) error {
	r.pull = toPeriphPull(pull)
	return r.p.In(r.pull, gpio.NoEdge)
}

func (r *PiPin) ConfigureOutput(initial bool) error {
	return r.p.Out(gpio.Level(initial))
}

func (r *PiPin) Set(level bool) { _ = r.p.Out(gpio.Level(level)) }
func (r *PiPin) Get() bool      { return bool(r.p.Read()) }
func (r *PiPin) Toggle()        { r.Set(!r.Get()) }
func (r *PiPin) Number() int    { return r.p.Number() }

func (r *PiPin) SetIRQ(edge halcore.Edge, handler func()) error {
	if err := r.ClearIRQ(); err != nil {
		return err
	}
	if err := r.p.In(r.pull, toPeriphEdge(edge)); err != nil {
		return err
	}
	if edge == halcore.EdgeNone {
		return nil
	}
	r.mu.Lock()
	stop, done := make(chan struct{}), make(chan struct{})
	r.stop, r.done = stop, done
	r.mu.Unlock()
	r.running.Store(true)

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Bounded wait so ClearIRQ is noticed on pins whose Halt does
			// not interrupt WaitForEdge.
			if !r.p.WaitForEdge(100 * time.Millisecond) {
				continue
			}
			select {
			case <-stop:
				return
			default:
				handler()
			}
		}
	}()
	return nil
}

// release stops interrupt delivery and halts the pin.
func (r *PiPin) release() error {
	_ = r.ClearIRQ()
	return r.p.Halt()
}

func (r *PiPin) ClearIRQ() error {
	if !r.running.Swap(false) {
		return nil
	}
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()
	close(stop)
	_ = r.p.Halt()
	<-done
	return nil
}
