// Package edgex turns a polled boolean condition into edge-triggered
// notifications: one callback when the condition becomes true, another when
// it becomes false again. Holding steady fires nothing.
package edgex

// Transition is the result of one Update.
type Transition uint8

const (
	Steady  Transition = iota
	Entered            // false -> true
	Cleared            // true -> false
)

func (t Transition) String() string {
	switch t {
	case Entered:
		return "entered"
	case Cleared:
		return "cleared"
	default:
		return "steady"
	}
}

// Notifier remembers the last observed state of one signal.
// It is not safe for concurrent use; own it from the polling loop.
type Notifier struct {
	Name string

	// OnEnter and OnClear may be nil.
	OnEnter func()
	OnClear func()

	last bool
}

// Update feeds the current state and fires at most one callback.
func (n *Notifier) Update(cur bool) Transition {
	prev := n.last
	n.last = cur
	switch {
	case cur && !prev:
		if n.OnEnter != nil {
			n.OnEnter()
		}
		return Entered
	case !cur && prev:
		if n.OnClear != nil {
			n.OnClear()
		}
		return Cleared
	}
	return Steady
}

// Poll evaluates pred and feeds the result to Update. If pred fails the
// state is left untouched and the error is returned.
func (n *Notifier) Poll(pred func() (bool, error)) (Transition, error) {
	cur, err := pred()
	if err != nil {
		return Steady, err
	}
	return n.Update(cur), nil
}

// Active reports the last observed state.
func (n *Notifier) Active() bool { return n.last }

// Reset forgets history; the next true observation fires OnEnter again.
func (n *Notifier) Reset() { n.last = false }
