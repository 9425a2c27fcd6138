// Package irqflag hands a single "something happened" bit from interrupt
// context to a polling loop without locks.
//
// The interrupt side only ever calls Set; the loop only ever calls Take.
// Repeated Sets before a Take coalesce into one request, the same way a
// volatile bool written by an ISR behaves.
package irqflag

import "sync/atomic"

type Flag struct {
	pending atomic.Bool
	wake    chan struct{} // 1-slot edge notification
	sets    atomic.Uint32
}

func New() *Flag {
	return &Flag{wake: make(chan struct{}, 1)}
}

// Set raises the flag. Safe from an ISR: it never blocks or allocates.
func (f *Flag) Set() {
	f.sets.Add(1)
	if f.pending.Swap(true) {
		return // already pending; wake token is outstanding
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Take clears the flag and reports whether it was set.
func (f *Flag) Take() bool { return f.pending.Swap(false) }

// Pending reports the flag without clearing it.
func (f *Flag) Pending() bool { return f.pending.Load() }

// C is readable after a Set; the receiver must still call Take.
func (f *Flag) C() <-chan struct{} { return f.wake }

// Sets counts every Set call, including coalesced ones.
func (f *Flag) Sets() uint32 { return f.sets.Load() }
