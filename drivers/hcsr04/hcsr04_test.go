package hcsr04

import (
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

type fakeClock struct{ us uint64 }

func (c *fakeClock) Micros() uint64 { return c.us }

type fakePin struct {
	mu    sync.Mutex
	level bool
	log   []bool
}

func (p *fakePin) Set(b bool) {
	p.mu.Lock()
	p.level = b
	p.log = append(p.log, b)
	p.mu.Unlock()
}

func (p *fakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func newTestDevice() (*Device, *fakeClock, *fakePin, *fakePin, *[]time.Duration) {
	clk := &fakeClock{}
	trig, echo := &fakePin{}, &fakePin{}
	var delays []time.Duration
	d := New(trig, echo, Config{
		Clock: clk,
		Delay: func(dur time.Duration) { delays = append(delays, dur) },
	})
	return d, clk, trig, echo, &delays
}

// echoAt drives the echo pin through one pulse and calls the ISR.
func echoAt(d *Device, clk *fakeClock, echo *fakePin, rise, fall uint64) {
	clk.us = rise
	echo.Set(true)
	d.Edge()
	clk.us = fall
	echo.Set(false)
	d.Edge()
}

func TestRiseFallScenario(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()

	echoAt(d, clk, echo, 1000, 1200)

	c.Assert(d.PulseUS(), qt.Equals, uint32(200))
	c.Assert(d.DistanceCM(), qt.Equals, uint32(3)) // 200*343/20000 = 3.43
	c.Assert(d.Seq(), qt.Equals, uint32(1))
	c.Assert(d.timer.ReadMicros(), qt.Equals, uint64(0))
}

func TestZeroBeforeFirstEcho(t *testing.T) {
	c := qt.New(t)
	d, _, _, _, _ := newTestDevice()
	c.Assert(d.Reading(), qt.Equals, Reading{})
	c.Assert(d.Seq(), qt.Equals, uint32(0))
}

func TestDistanceFormula(t *testing.T) {
	c := qt.New(t)
	c.Assert(DistanceFromPulse(0), qt.Equals, uint32(0))
	c.Assert(DistanceFromPulse(58), qt.Equals, uint32(0)) // 0.99
	c.Assert(DistanceFromPulse(59), qt.Equals, uint32(1))
	c.Assert(DistanceFromPulse(2915), qt.Equals, uint32(49))
	c.Assert(DistanceFromPulse(23324), qt.Equals, uint32(400))

	var prev uint32
	for us := uint32(0); us <= 40000; us += 7 {
		got := DistanceFromPulse(us)
		c.Assert(got, qt.Equals, us*343/20000)
		c.Assert(got >= prev, qt.IsTrue, qt.Commentf("not monotonic at %d", us))
		prev = got
	}
}

func TestSecondRiseRestartsTiming(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()

	// Rise, missed fall, rise again: timing restarts at the second rise.
	clk.us = 100
	echo.Set(true)
	d.Edge()
	clk.us = 5000
	d.Rise()
	clk.us = 5580
	echo.Set(false)
	d.Edge()

	c.Assert(d.PulseUS(), qt.Equals, uint32(580))
	c.Assert(d.DistanceCM(), qt.Equals, uint32(9))
	c.Assert(d.Seq(), qt.Equals, uint32(1))
}

func TestFallWithoutRiseIsIgnored(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()
	echoAt(d, clk, echo, 0, 1166) // 19 cm

	clk.us = 9000
	d.Fall()

	c.Assert(d.DistanceCM(), qt.Equals, uint32(19))
	c.Assert(d.Seq(), qt.Equals, uint32(1))
}

func TestMissingEchoLeavesReadingStale(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()
	echoAt(d, clk, echo, 0, 2000)
	before := d.Reading()

	d.Start()
	clk.us = 50000
	echo.Set(true)
	d.Edge() // rise, no fall ever arrives

	c.Assert(d.Reading(), qt.Equals, before)
	c.Assert(d.Seq(), qt.Equals, uint32(1))
}

func TestStartPulsesTrigger(t *testing.T) {
	c := qt.New(t)
	d, _, trig, _, delays := newTestDevice()
	trig.log = nil

	d.Start()

	c.Assert(trig.log, qt.DeepEquals, []bool{true, false})
	c.Assert(*delays, qt.DeepEquals, []time.Duration{DefaultTriggerWidth})
}

func TestTriggerWidthNeverBelowMinimum(t *testing.T) {
	c := qt.New(t)
	var got time.Duration
	d := New(&fakePin{}, &fakePin{}, Config{
		TriggerWidth: time.Microsecond,
		Clock:        &fakeClock{},
		Delay:        func(dur time.Duration) { got = dur },
	})
	d.Start()
	c.Assert(got, qt.Equals, DefaultTriggerWidth)
}

func TestHandlerOverridesRunAfterState(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()

	var seen []Edge
	d.SetRiseHandler(EdgeHandlerFunc(func(e Edge) { seen = append(seen, e) }))
	d.SetFallHandler(EdgeHandlerFunc(func(e Edge) {
		// Driver state is already updated when the override runs.
		c.Check(d.Reading(), qt.Equals, e.Reading)
		seen = append(seen, e)
	}))

	echoAt(d, clk, echo, 1000, 1200)

	c.Assert(seen, qt.HasLen, 2)
	c.Assert(seen[0].Rising, qt.IsTrue)
	c.Assert(seen[0].AtMicros, qt.Equals, uint64(1000))
	c.Assert(seen[1].Rising, qt.IsFalse)
	c.Assert(seen[1].Reading, qt.Equals, Reading{PulseUS: 200, DistanceCM: 3})

	d.SetFallHandler(nil)
	echoAt(d, clk, echo, 2000, 2100)
	c.Assert(seen, qt.HasLen, 3) // only the rise observer fired
	c.Assert(d.PulseUS(), qt.Equals, uint32(100))
}

func TestAttach(t *testing.T) {
	c := qt.New(t)
	d, clk, _, echo, _ := newTestDevice()
	var isr func()
	err := d.Attach(func(h func()) error { isr = h; return nil })
	c.Assert(err, qt.IsNil)

	clk.us = 10
	echo.Set(true)
	isr()
	clk.us = 310
	echo.Set(false)
	isr()
	c.Assert(d.PulseUS(), qt.Equals, uint32(300))
}

func TestConcurrentReadersNeverTear(t *testing.T) {
	d, clk, _, echo, _ := newTestDevice()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			r := d.Reading()
			if r.DistanceCM != DistanceFromPulse(r.PulseUS) {
				t.Errorf("torn reading %+v", r)
				return
			}
		}
	}()
	for i := uint64(1); i <= 2000; i++ {
		base := i * 100000
		echoAt(d, clk, echo, base, base+i*13)
	}
	close(done)
	wg.Wait()
}

func TestFilter(t *testing.T) {
	c := qt.New(t)
	w := []uint32{44, 12, 43, 400, 42}
	v, err := Filter(w)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint32(43))
	c.Assert(w, qt.DeepEquals, []uint32{12, 42, 43, 44, 400})

	_, err = Filter(nil)
	c.Assert(err, qt.Equals, ErrEmptyWindow)
}

func TestPulseTimer(t *testing.T) {
	c := qt.New(t)
	clk := &fakeClock{us: 10}
	tm := NewPulseTimer(clk)
	c.Assert(tm.ReadMicros(), qt.Equals, uint64(0))
	tm.Stop() // no-op
	c.Assert(tm.Running(), qt.IsFalse)

	tm.Start()
	clk.us = 60
	c.Assert(tm.ReadMicros(), qt.Equals, uint64(50))
	tm.Stop()
	clk.us = 500
	c.Assert(tm.ReadMicros(), qt.Equals, uint64(50))
	tm.Reset()
	c.Assert(tm.ReadMicros(), qt.Equals, uint64(0))
}
