// Package ds1302 is a bit-banged driver for the DS1302 trickle-charge
// timekeeping chip (3-wire: CE, SCLK, I/O).
//
//	d := ds1302.New(ce, sclk, io)
//	t, err := d.ReadTime()
//	err = d.SetTime(t)
//	b, _ := d.ReadRAM(0)
//
// The chip keeps 24-hour wall time with a two-digit year (2000–2099) and
// 31 bytes of battery-backed RAM. Data moves LSB first: the master drives
// I/O before each rising SCLK edge, the chip drives I/O after each falling
// edge.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS1302.pdf
package ds1302

import (
	"errors"
	"time"
)

// Command bytes. Bit 0 selects read, bit 6 selects RAM.
const (
	cmdWriteWP        = 0x8E
	cmdClockBurstW    = 0xBE
	cmdClockBurstR    = 0xBF
	cmdRAMBase        = 0xC0
	cmdRead           = 0x01
	flagClockHalt     = 0x80
	flag12Hour        = 0x80
	flagPM            = 0x20
	RAMSize           = 31
	clockBurstLen     = 8
	defaultBitDelayUs = 2
)

var (
	ErrAddress     = errors.New("ds1302: ram address out of range")
	ErrInvalidData = errors.New("ds1302: invalid clock data (chip absent?)")
	ErrYear        = errors.New("ds1302: year outside 2000-2099")
)

// Pin is an output line (CE, SCLK).
type Pin interface {
	Set(high bool)
}

// DataPin is the bidirectional I/O line.
type DataPin interface {
	Set(high bool)
	Get() bool
	// Input releases the line so the chip can drive it; Output takes it back.
	Input()
	Output()
}

// Device is one DS1302.
type Device struct {
	ce, sclk Pin
	io       DataPin

	// Delay is the half-bit delay. Defaults to a 2 µs time.Sleep.
	Delay func()
}

func New(ce, sclk Pin, io DataPin) *Device {
	d := &Device{ce: ce, sclk: sclk, io: io}
	d.Delay = func() { time.Sleep(defaultBitDelayUs * time.Microsecond) }
	ce.Set(false)
	sclk.Set(false)
	return d
}

// ---- time ----

// ReadTime reads the clock in one burst. The result is in UTC; the chip
// has no notion of zone, so callers treat it as local wall time.
func (d *Device) ReadTime() (time.Time, error) {
	var b [clockBurstLen]byte
	d.begin()
	d.writeByte(cmdClockBurstR)
	for i := range b {
		b[i] = d.readByte()
	}
	d.end()

	sec := fromBCD(b[0] &^ flagClockHalt)
	min := fromBCD(b[1])
	hour := hourFromReg(b[2])
	day := fromBCD(b[3])
	month := fromBCD(b[4])
	year := fromBCD(b[6])
	if sec > 59 || min > 59 || hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 || year > 99 {
		return time.Time{}, ErrInvalidData
	}
	return time.Date(2000+year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// SetTime writes t (24-hour mode) and starts the oscillator.
func (d *Device) SetTime(t time.Time) error {
	if t.Year() < 2000 || t.Year() > 2099 {
		return ErrYear
	}
	d.writeReg(cmdWriteWP, 0)
	b := [clockBurstLen]byte{
		toBCD(t.Second()), // CH cleared
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		toBCD(t.Day()),
		toBCD(int(t.Month())),
		toBCD(int(t.Weekday()) + 1), // 1 = Sunday
		toBCD(t.Year() - 2000),
		0, // WP
	}
	d.begin()
	d.writeByte(cmdClockBurstW)
	for _, v := range b {
		d.writeByte(v)
	}
	d.end()
	return nil
}

// IsRunning reports whether the clock-halt flag is clear.
func (d *Device) IsRunning() bool {
	return d.readReg(0x80|cmdRead)&flagClockHalt == 0
}

// ---- RAM ----

func (d *Device) ReadRAM(addr int) (byte, error) {
	if addr < 0 || addr >= RAMSize {
		return 0, ErrAddress
	}
	return d.readReg(ramCmd(addr) | cmdRead), nil
}

func (d *Device) WriteRAM(addr int, v byte) error {
	if addr < 0 || addr >= RAMSize {
		return ErrAddress
	}
	d.writeReg(cmdWriteWP, 0)
	d.writeReg(ramCmd(addr), v)
	return nil
}

func ramCmd(addr int) byte { return cmdRAMBase | byte(addr)<<1 }

// ---- wire level ----

func (d *Device) readReg(cmd byte) byte {
	d.begin()
	d.writeByte(cmd)
	v := d.readByte()
	d.end()
	return v
}

func (d *Device) writeReg(cmd, v byte) {
	d.begin()
	d.writeByte(cmd)
	d.writeByte(v)
	d.end()
}

func (d *Device) begin() {
	d.sclk.Set(false)
	d.io.Output()
	d.ce.Set(true)
	d.Delay()
}

func (d *Device) end() {
	d.ce.Set(false)
	d.io.Output()
	d.Delay()
}

func (d *Device) writeByte(b byte) {
	d.io.Output()
	for i := 0; i < 8; i++ {
		d.io.Set(b&1 != 0)
		d.Delay()
		d.sclk.Set(true)
		d.Delay()
		d.sclk.Set(false)
		b >>= 1
	}
}

// readByte expects the chip to have presented bit 0 on the previous
// falling edge.
func (d *Device) readByte() byte {
	d.io.Input()
	var b byte
	for i := 0; i < 8; i++ {
		if d.io.Get() {
			b |= 1 << i
		}
		d.sclk.Set(true)
		d.Delay()
		d.sclk.Set(false)
		d.Delay()
	}
	return b
}

func hourFromReg(v byte) int {
	if v&flag12Hour == 0 {
		return fromBCD(v & 0x3F)
	}
	h := fromBCD(v & 0x1F)
	if h == 12 {
		h = 0
	}
	if v&flagPM != 0 {
		h += 12
	}
	return h
}

func toBCD(v int) byte { return byte(v/10)<<4 | byte(v%10) }

func fromBCD(b byte) int { return int(b>>4)*10 + int(b&0x0F) }
