package hcsr04

// Clock is a monotonic microsecond counter. It must be safe to call from
// an interrupt handler.
type Clock interface {
	Micros() uint64
}

// PulseTimer measures the width of one echo pulse.
//
// It is owned by the edge handlers and never touched from the polling
// side, so it carries no synchronisation of its own.
type PulseTimer struct {
	clk     Clock
	running bool
	start   uint64
	elapsed uint64
}

func NewPulseTimer(clk Clock) *PulseTimer { return &PulseTimer{clk: clk} }

// Start begins timing from now. Calling Start while running restarts the
// measurement and drops whatever was in flight.
func (t *PulseTimer) Start() {
	t.start = t.clk.Micros()
	t.elapsed = 0
	t.running = true
}

// Stop freezes the elapsed time. It is a no-op when not running.
func (t *PulseTimer) Stop() {
	if !t.running {
		return
	}
	t.elapsed = since(t.start, t.clk.Micros())
	t.running = false
}

// ReadMicros returns the live elapsed time while running, else the frozen
// value from the last Stop.
func (t *PulseTimer) ReadMicros() uint64 {
	if t.running {
		return since(t.start, t.clk.Micros())
	}
	return t.elapsed
}

// Reset zeroes the elapsed time; a running timer keeps running from now.
func (t *PulseTimer) Reset() {
	t.elapsed = 0
	if t.running {
		t.start = t.clk.Micros()
	}
}

func (t *PulseTimer) Running() bool { return t.running }

func since(start, now uint64) uint64 {
	if now < start {
		return 0
	}
	return now - start
}
