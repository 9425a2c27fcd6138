// services/hal/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"errors"
	"sync"
	"sync/atomic"

	"smartbin-go/services/hal/halcore"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

// ----------------------------- I²C (host) ------------------------------------

var errNoDevice = errors.New("i2c: no device at address")

// HostI2C implements tinygo drivers.I2C over an in-memory DS3231 register
// file. The first written byte selects the register pointer; the rest are
// stored from there and reads continue from the pointer. Registers do not
// tick on their own.
type HostI2C struct {
	mu   sync.Mutex
	regs [0x13]byte

	// Absent makes every transfer fail, as with a missing chip.
	Absent bool

	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if h.Absent || addr != ds3231.Address {
		return errNoDevice
	}
	if len(w) == 0 {
		return nil
	}
	ptr := int(w[0])
	for i, b := range w[1:] {
		h.regs[(ptr+i)%len(h.regs)] = b
	}
	for i := range r {
		r[i] = h.regs[(ptr+i)%len(h.regs)]
	}
	return nil
}

type hostI2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *hostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// DefaultI2CFactory creates host I²C buses "i2c0" and "i2c1", each with an
// emulated RTC.
func DefaultI2CFactory() halcore.I2CBusFactory {
	return &hostI2CFactory{
		buses: map[string]drivers.I2C{
			"i2c0": &HostI2C{},
			"i2c1": &HostI2C{},
		},
	}
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements GPIOPin and IRQPin for the simulator and tests.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    halcore.Pull
	irqEdge halcore.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.mu.Unlock()
	p.Set(initial)
	return nil
}

// Set drives the level and runs the IRQ handler, outside the lock, when
// the change matches the configured edge.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

// Pull reports the bias requested by ConfigureInput.
func (p *FakePin) Pull() halcore.Pull {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pull
}

// IsOutput reports the configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = halcore.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	if seen == halcore.EdgeNone {
		return false
	}
	return cfg == halcore.EdgeBoth || cfg == seen
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	return f.Pin(n), true
}

// Pin exposes the underlying *FakePin (e.g. to drive IRQ edges).
func (f *HostPinFactory) Pin(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p
}

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() halcore.PinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}

// ----------------------------- ADC (host) ------------------------------------

// FakeADC returns whatever was last stored.
type FakeADC struct {
	v atomic.Uint32
}

func (a *FakeADC) Get() uint16    { return uint16(a.v.Load()) }
func (a *FakeADC) Store(v uint16) { a.v.Store(uint32(v)) }

// ----------------------------- RTC RAM (host) --------------------------------

// FakeRAM is 31 bytes of scratch memory, matching the DS1302.
type FakeRAM struct {
	mu  sync.Mutex
	mem [31]byte
}

func (r *FakeRAM) ReadRAM(addr uint8) (byte, error) {
	if int(addr) >= len(r.mem) {
		return 0, errBadRAMAddr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem[addr], nil
}

func (r *FakeRAM) WriteRAM(addr uint8, v byte) error {
	if int(addr) >= len(r.mem) {
		return errBadRAMAddr
	}
	r.mu.Lock()
	r.mem[addr] = v
	r.mu.Unlock()
	return nil
}

var errBadRAMAddr = errors.New("ram: address out of range")
