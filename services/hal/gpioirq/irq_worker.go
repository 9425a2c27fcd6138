// services/hal/gpioirq/irq_worker.go
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"smartbin-go/errcode"
	"smartbin-go/services/hal/halcore"
)

// Event is delivered from the worker to its consumer (the monitor loop).
type Event struct {
	Name  string
	Level bool // after inversion
	Edge  halcore.Edge
	TS    time.Time
}

type Worker struct {
	// Written by ISR; MUST NOT block the ISR:
	isrQ chan isrEvent
	// Consumed by the monitor:
	outQ    chan Event
	stopped chan struct{}

	mu     sync.RWMutex
	inputs map[string]*watch // name -> watch

	drops    atomic.Uint32 // ISR queue full
	outDrops atomic.Uint32 // consumer too slow
}

type isrEvent struct {
	name  string
	level bool // captured in ISR
}

type watch struct {
	pin       halcore.IRQPin
	edge      halcore.Edge
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 16
	}
	if outBuf <= 0 {
		outBuf = 16
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
		inputs:  map[string]*watch{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

func (w *Worker) Events() <-chan Event { return w.outQ }

// RegisterInput hooks pin's interrupt and reports debounced edges under
// name. The returned func unhooks it.
func (w *Worker) RegisterInput(name string, pin halcore.IRQPin, edge halcore.Edge, debounce time.Duration, invert bool) (func(), error) {
	if edge == halcore.EdgeNone {
		return func() {}, nil
	}
	if pin == nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "gpioirq.register", Msg: name}
	}

	// Snapshot the logical level so later edges compare like-for-like.
	init := pin.Get()
	if invert {
		init = !init
	}
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  debounce,
		invert:    invert,
		lastLevel: init,
	}

	w.mu.Lock()
	w.inputs[name] = wh
	w.mu.Unlock()

	// ISR handler: fast register read + non-blocking channel send.
	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{name: name, level: l}:
		default:
			w.drops.Add(1)
		}
	}
	if err := pin.SetIRQ(edge, handler); err != nil {
		w.mu.Lock()
		delete(w.inputs, name)
		w.mu.Unlock()
		return nil, errcode.Wrap(errcode.Unsupported, "gpioirq.register", err)
	}

	return func() {
		w.mu.Lock()
		if cur, ok := w.inputs[name]; ok && cur == wh {
			_ = cur.pin.ClearIRQ()
			delete(w.inputs, name)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.inputs[ev.name]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	raw := ev.level
	if wh.invert {
		raw = !raw
	}
	now := time.Now()

	// Debounce: edges inside the window are dropped without restarting it.
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}

	var e halcore.Edge
	if wh.edge == halcore.EdgeBoth {
		switch {
		case !wh.lastLevel && raw:
			e = halcore.EdgeRising
		case wh.lastLevel && !raw:
			e = halcore.EdgeFalling
		}
	} else {
		// Single-edge IRQs only fire on the configured edge.
		e = wh.edge
	}

	if e != halcore.EdgeNone {
		select {
		case w.outQ <- Event{Name: ev.name, Level: raw, Edge: e, TS: now}:
		default:
			w.outDrops.Add(1)
		}
	}

	wh.lastLevel = raw
	wh.lastEvent = now
}

func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
func (w *Worker) OutDrops() uint32 { return w.outDrops.Load() }
