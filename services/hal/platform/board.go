// services/hal/platform/board.go
package platform

import (
	"io"
	"time"

	"smartbin-go/errcode"
	"smartbin-go/services/hal/halcore"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

// Default wiring (Pico GP numbers). The simulator keys its fake pins by the
// same numbers.
const (
	PinTrigger = 2
	PinEcho    = 3
	PinButton  = 14
	PinMotor   = 15
	PinRain    = 16

	PinRTCCE   = 10
	PinRTCSCLK = 11
	PinRTCIO   = 12

	PinLightADC = 26
	PinSoilADC  = 27
)

// Clock is the microsecond time base handed to the ranging driver. A nil
// Clock means the process monotonic clock.
type Clock interface {
	Micros() uint64
}

// Board bundles every resource the monitor needs. Optional fields may be
// nil: RAM (clocks without scratch memory), Console (no command input) and
// Clock.
type Board struct {
	Name string

	Trigger halcore.GPIOPin
	Echo    halcore.IRQPin
	Motor   halcore.GPIOPin
	Rain    halcore.GPIOPin
	Button  halcore.IRQPin

	Light halcore.ADC
	Soil  halcore.ADC

	RTC halcore.RTC
	RAM halcore.RTCRAM

	Clock   Clock
	Log     io.Writer
	Console io.Reader

	closers []func() error
}

// Close releases platform handles in reverse order of acquisition.
func (b *Board) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

func (b *Board) onClose(fn func() error) { b.closers = append(b.closers, fn) }

// ----------------------------- DS3231 ----------------------------------------

// DS3231Clock adapts the TinyGo DS3231 driver to halcore.RTC.
type DS3231Clock struct {
	dev ds3231.Device
}

func NewDS3231Clock(bus drivers.I2C) *DS3231Clock {
	d := ds3231.New(bus)
	d.Configure()
	return &DS3231Clock{dev: d}
}

func (c *DS3231Clock) ReadTime() (time.Time, error) {
	t, err := c.dev.ReadTime()
	if err != nil {
		return time.Time{}, errcode.Wrap(errcode.RTCError, "ds3231.read", err)
	}
	return t, nil
}

func (c *DS3231Clock) SetTime(t time.Time) error {
	if err := c.dev.SetTime(t.UTC()); err != nil {
		return errcode.Wrap(errcode.RTCError, "ds3231.set", err)
	}
	return nil
}

// Valid reports whether the oscillator has run uninterrupted since the
// last SetTime.
func (c *DS3231Clock) Valid() bool { return c.dev.IsTimeValid() }

// TemperatureMilliC is the die temperature, useful as a sanity reading.
func (c *DS3231Clock) TemperatureMilliC() (int32, error) { return c.dev.ReadTemperature() }
