// cmd/boardtest/main.go
package main

import (
	"fmt"
	"io"
	"time"

	"smartbin-go/drivers/hcsr04"
	"smartbin-go/services/hal/halcore"
	"smartbin-go/services/hal/platform"
	"smartbin-go/services/monitor"
	"smartbin-go/types"
	"smartbin-go/x/timex"
)

// ---------- Configuration ----------

const (
	pings      = 5
	pingSettle = 60 * time.Millisecond

	// Pump pulse per cycle
	pumpOn    = 500 * time.Millisecond
	cycleGap  = 2 * time.Second
	minCM     = 2
	maxCM     = 400
	maxEchoes = pings // every ping should answer

	// Cycles: 0 = loop forever
	cyclesToRun = 0
)

// ---------- Output ----------

type out struct{ w io.Writer }

func (o out) println(a ...any) { fmt.Fprint(o.w, fmt.Sprintln(a...)) }

func (o out) printf(format string, a ...any) { fmt.Fprintf(o.w, format, a...) }

// ---------- Checks ----------

func checkRanger(o out, d *hcsr04.Device) bool {
	before := d.Seq()
	window := make([]uint32, pings)
	for i := range window {
		d.Start()
		time.Sleep(pingSettle)
		window[i] = d.DistanceCM()
	}
	echoes := d.Seq() - before
	cm, err := hcsr04.Filter(window)
	o.printf("ranger: %v cm (median %d, echoes %d/%d)\r\n", window, cm, echoes, pings)
	return err == nil && echoes == maxEchoes && cm >= minCM && cm <= maxCM
}

func checkRTC(o out, b *platform.Board) bool {
	if b.RTC == nil {
		o.println("rtc: none")
		return false
	}
	t1, err := b.RTC.ReadTime()
	if err != nil {
		o.println("rtc:", err.Error())
		return false
	}
	time.Sleep(1100 * time.Millisecond)
	t2, err := b.RTC.ReadTime()
	if err != nil {
		o.println("rtc:", err.Error())
		return false
	}
	o.printf("rtc: %s -> %s\r\n", timex.HMS(t1), timex.HMS(t2))
	// A stopped oscillator reads the same second twice.
	return t2.After(t1)
}

func checkEnv(o out, b *platform.Board, cfg types.MonitorConfig) {
	if b.Light != nil {
		o.printf("light: raw 0x%04x off=%v\r\n", b.Light.Get(), monitor.LightOff(b.Light, cfg.LightOffLevel))
	}
	if b.Soil != nil {
		raw := b.Soil.Get()
		o.printf("soil: raw12 %d -> %d%%\r\n", raw>>4, monitor.SoilPercent(raw, cfg))
	}
	if b.Rain != nil {
		o.printf("rain: %v\r\n", monitor.Raining(b.Rain))
	}
	if b.Button != nil {
		o.printf("button: pressed=%v\r\n", !b.Button.Get())
	}
}

func pulsePump(o out, b *platform.Board) {
	if b.Motor == nil {
		return
	}
	b.Motor.Set(true)
	o.println("pump: on")
	time.Sleep(pumpOn)
	b.Motor.Set(false)
	o.println("pump: off")
}

// ---------- Main ----------

func main() {
	time.Sleep(2 * time.Second)

	b, err := platform.Default()
	if err != nil {
		println("[boardtest] board:", err.Error())
		return
	}
	defer b.Close()
	o := out{w: b.Log}
	cfg := types.DefaultMonitorConfig()

	_ = b.Trigger.ConfigureOutput(false)
	_ = b.Echo.ConfigureInput(halcore.PullDown)
	if b.Motor != nil {
		_ = b.Motor.ConfigureOutput(false)
	}
	if b.Rain != nil {
		_ = b.Rain.ConfigureInput(halcore.PullUp)
	}
	if b.Button != nil {
		_ = b.Button.ConfigureInput(halcore.PullUp)
	}

	d := hcsr04.New(b.Trigger, b.Echo, hcsr04.Config{Clock: b.Clock})
	if err := d.Attach(func(h func()) error { return b.Echo.SetIRQ(halcore.EdgeBoth, h) }); err != nil {
		o.println("[boardtest] echo irq:", err.Error())
		return
	}

	cycle := 0
	for {
		cycle++
		o.println("=== boardtest: cycle", cycle, "===")

		rangerOK := checkRanger(o, d)
		rtcOK := checkRTC(o, b)
		checkEnv(o, b, cfg)
		pulsePump(o, b)

		if rangerOK && rtcOK {
			o.println("[PASS] ranger and clock healthy")
		} else {
			o.printf("[FAIL] ranger=%v rtc=%v\r\n", rangerOK, rtcOK)
		}

		if cyclesToRun > 0 && cycle >= cyclesToRun {
			o.println("completed", cycle, "cycles; halting")
			return
		}
		time.Sleep(cycleGap)
	}
}
