// services/hal/platform/pico_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	"smartbin-go/drivers/ds1302"
	halcore "smartbin-go/services/hal/halcore"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// -----------------------------------------------------------------------------
// Defaults used on Raspberry Pi Pico / Pico 2 (RP2 family)
// -----------------------------------------------------------------------------

// DefaultI2CFactory configures i2c0 with board-default pins at 400 kHz.
func DefaultI2CFactory() halcore.I2CBusFactory {
	f := &rp2I2CFactory{buses: make(map[string]drivers.I2C)}

	b0 := machine.I2C0
	_ = b0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	f.buses["i2c0"] = b0
	return f
}

// DefaultPinFactory maps logical numbers directly to machine.Pin(n), which
// matches Pico GP numbering.
func DefaultPinFactory() halcore.PinFactory { return rp2PinFactory{} }

// PicoConfig selects the RTC backend. The default is a DS1302 on
// PinRTCCE/PinRTCSCLK/PinRTCIO; UseDS3231 switches to i2c0.
type PicoConfig struct {
	UseDS3231 bool
	Baud      uint32
}

// NewPicoBoard wires the default pin map. Diagnostics and console share
// UART0 (GP0/GP1).
func NewPicoBoard(cfg PicoConfig) (*Board, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	machine.InitADC()

	pins := DefaultPinFactory()
	get := func(n int) *rp2Pin {
		p, _ := pins.ByNumber(n)
		return p.(*rp2Pin)
	}

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: cfg.Baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	b := &Board{
		Name:    "pico",
		Trigger: get(PinTrigger),
		Echo:    get(PinEcho),
		Motor:   get(PinMotor),
		Rain:    get(PinRain),
		Button:  get(PinButton),
		Light:   newRP2ADC(PinLightADC),
		Soil:    newRP2ADC(PinSoilADC),
		Log:     u,
		Console: uartReader{u: u},
	}

	if cfg.UseDS3231 {
		bus, _ := DefaultI2CFactory().ByID("i2c0")
		b.RTC = NewDS3231Clock(bus)
		return b, nil
	}

	ce, sclk, io := get(PinRTCCE), get(PinRTCSCLK), get(PinRTCIO)
	_ = ce.ConfigureOutput(false)
	_ = sclk.ConfigureOutput(false)
	_ = io.ConfigureOutput(false)
	rtc := ds1302.New(ce, sclk, rp2DataPin{io})
	b.RTC = rtc
	b.RAM = rtc
	return b, nil
}

// Default returns the board for this build.
func Default() (*Board, error) { return NewPicoBoard(PicoConfig{}) }

// ---- I²C implementation ----

type rp2I2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *rp2I2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// ---- ADC ----

type rp2ADC struct{ a machine.ADC }

func newRP2ADC(n int) *rp2ADC {
	a := machine.ADC{Pin: machine.Pin(n)}
	a.Configure(machine.ADCConfig{})
	return &rp2ADC{a: a}
}

func (r *rp2ADC) Get() uint16 { return r.a.Get() }

// ---- UART console ----

type uartReader struct{ u *uartx.UART }

func (r uartReader) Read(p []byte) (int, error) {
	return r.u.RecvSomeContext(context.Background(), p)
}

// ---- GPIO implementation (includes IRQ support) ----

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	// Constrain to RP2’s user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	var mode machine.PinMode
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Toggle()        { r.p.Set(!r.p.Get()) }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(edge halcore.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e halcore.Edge) machine.PinChange {
	switch e {
	case halcore.EdgeRising:
		return machine.PinRising
	case halcore.EdgeFalling:
		return machine.PinFalling
	case halcore.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// rp2DataPin switches direction for the DS1302 I/O line.
type rp2DataPin struct{ *rp2Pin }

func (d rp2DataPin) Input()  { _ = d.ConfigureInput(halcore.PullNone) }
func (d rp2DataPin) Output() { d.p.Configure(machine.PinConfig{Mode: machine.PinOutput}) }
