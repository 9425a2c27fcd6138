package timex

import "time"

var boot = time.Now()

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Micros returns microseconds elapsed since process start on the monotonic
// clock. It is cheap enough to call from an interrupt handler.
func Micros() uint64 { return uint64(time.Since(boot) / time.Microsecond) }

// MonoClock adapts Micros to interfaces that want a clock value.
type MonoClock struct{}

func (MonoClock) Micros() uint64 { return Micros() }

// HMS formats the wall-clock part of t as "[hh:mm:ss]".
func HMS(t time.Time) string { return t.Format("[15:04:05]") }
