// services/hal/halcore/types.go
package halcore

import (
	"time"

	"tinygo.org/x/drivers"
)

// ---- Buses ----

// I2CBusFactory injects configured I²C instances by id.
// Uses the TinyGo drivers.I2C interface to remain compatible on MCU builds.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts. The handler runs in interrupt
// context on MCU builds.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the configured number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// Util
func EdgeToString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ---- Analogue ----

// ADC returns a left-aligned 16-bit sample (0..65535), the same scale as
// TinyGo machine.ADC.Get regardless of converter resolution.
type ADC interface {
	Get() uint16
}

// ---- Real-time clock ----

type RTC interface {
	ReadTime() (time.Time, error)
	SetTime(t time.Time) error
}

// RTCRAM is battery-backed scratch memory some clocks provide.
type RTCRAM interface {
	ReadRAM(addr uint8) (byte, error)
	WriteRAM(addr uint8, v byte) error
}
