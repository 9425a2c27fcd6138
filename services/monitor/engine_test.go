package monitor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"smartbin-go/errcode"
	"smartbin-go/types"

	qt "github.com/frankban/quicktest"
)

var errNoEcho = errors.New("no echo")

// scriptMeasurer replays steps in order; ok=false steps and an exhausted
// script fail with errNoEcho.
type step struct {
	v  float32
	ok bool
}

type scriptMeasurer struct {
	steps []step
	i     int
	calls int
}

func (m *scriptMeasurer) Measure(ctx context.Context) (float32, error) {
	m.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.i >= len(m.steps) {
		return 0, errNoEcho
	}
	s := m.steps[m.i]
	m.i++
	if !s.ok {
		return 0, errNoEcho
	}
	return s.v, nil
}

func vals(vs ...float32) []step {
	out := make([]step, len(vs))
	for i, v := range vs {
		out[i] = step{v: v, ok: true}
	}
	return out
}

func newTestEngine(m Measurer, attempts int) (*Engine, *bytes.Buffer, *[]time.Duration) {
	var log bytes.Buffer
	var sleeps []time.Duration
	e := NewEngine(m, EngineConfig{Attempts: attempts, Gap: time.Second, FullOffsetCM: 15}, &log)
	e.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return e, &log, &sleeps
}

func TestCalibrateMeanOfValidAttempts(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: []step{{40, true}, {42, true}, {0, false}, {44, true}}}
	e, log, sleeps := newTestEngine(m, 4)

	c.Assert(e.State(), qt.Equals, types.Uncalibrated)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)

	ref, ok := e.Reference()
	c.Assert(ok, qt.IsTrue)
	c.Assert(ref, qt.Equals, float32(42))
	c.Assert(e.State(), qt.Equals, types.Calibrated)
	c.Assert(*sleeps, qt.DeepEquals, []time.Duration{time.Second, time.Second, time.Second, time.Second})

	out := log.String()
	c.Assert(out, qt.Contains, "=== Starting Calibration ===")
	c.Assert(out, qt.Contains, "Calibration 3 failed")
	c.Assert(out, qt.Contains, "=== Calibration Complete ===")
	c.Assert(out, qt.Contains, "HCS-04 reference value: 42 cm")

	snap := e.Snapshot()
	c.Assert(snap.Valid, qt.Equals, 3)
	c.Assert(snap.Attempts, qt.Equals, 4)
	c.Assert(snap.ReferenceCM, qt.Equals, float32(42))
}

func TestCalibrateDefaultThreeAttempts(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(40, 42, 44, 1000)}
	e, _, _ := newTestEngine(m, 3)

	c.Assert(e.Calibrate(context.Background()), qt.IsNil)
	ref, _ := e.Reference()
	c.Assert(ref, qt.Equals, float32(42))
	c.Assert(m.calls, qt.Equals, 3)
}

func TestCalibrateNegativeReadingIsInvalid(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(-1, 50, -3)}
	e, log, _ := newTestEngine(m, 3)

	c.Assert(e.Calibrate(context.Background()), qt.IsNil)
	ref, _ := e.Reference()
	c.Assert(ref, qt.Equals, float32(50))
	c.Assert(log.String(), qt.Contains, "Calibration 1 failed")
	c.Assert(log.String(), qt.Contains, "Calibration 3 failed")
}

func TestCalibrateAllFailLeavesUncalibrated(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{}
	e, log, _ := newTestEngine(m, 3)

	err := e.Calibrate(context.Background())
	c.Assert(errcode.Of(err), qt.Equals, errcode.NotCalibrated)
	c.Assert(e.State(), qt.Equals, types.Uncalibrated)
	c.Assert(log.String(), qt.Contains, "=== Calibration Failed ===")

	// Uncalibrated: always full, whatever the distance.
	m.steps, m.i = vals(500, 1, 0), 0
	for i := 0; i < 3; i++ {
		full, _, err := e.IsBinFull(context.Background())
		c.Assert(err, qt.IsNil)
		c.Assert(full, qt.IsTrue)
	}
}

func TestIsBinFullThreshold(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50)}
	e, _, _ := newTestEngine(m, 1)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)

	for _, tc := range []struct {
		cm   float32
		full bool
	}{
		{30, true},   // 20 cm closer
		{34.9, true}, // just past the offset
		{35, false},  // exactly -15 is not full
		{40, false},
		{80, false}, // farther than reference
	} {
		m.steps, m.i = vals(tc.cm), 0
		full, cm, err := e.IsBinFull(context.Background())
		c.Assert(err, qt.IsNil)
		c.Assert(cm, qt.Equals, tc.cm)
		c.Assert(full, qt.Equals, tc.full, qt.Commentf("cm=%v", tc.cm))
	}
}

func TestIsBinFullMeasurementErrorReportsFull(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50)}
	e, _, _ := newTestEngine(m, 1)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)

	full, _, err := e.IsBinFull(context.Background())
	c.Assert(err, qt.ErrorIs, errNoEcho)
	c.Assert(full, qt.IsTrue)
}

func TestCalibrateCancelled(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50, 50, 50)}
	e, _, _ := newTestEngine(m, 3)
	ctx, cancel := context.WithCancel(context.Background())
	e.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	err := e.Calibrate(ctx)
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(e.State(), qt.Equals, types.Uncalibrated)
	c.Assert(m.calls, qt.Equals, 1)
}

func TestRecalibrateReplacesReference(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50, 70)}
	e, _, _ := newTestEngine(m, 1)

	c.Assert(e.Calibrate(context.Background()), qt.IsNil)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)
	ref, _ := e.Reference()
	c.Assert(ref, qt.Equals, float32(70))

	e.SetConfig(EngineConfig{Attempts: 0, FullOffsetCM: 5})
	m.steps, m.i = vals(64), 0
	full, _, _ := e.IsBinFull(context.Background())
	c.Assert(full, qt.IsTrue)
}

func TestFailedRecalibrateKeepsReference(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50)}
	e, log, _ := newTestEngine(m, 3)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)

	// Every attempt of the second run fails.
	m.steps, m.i = nil, 0
	err := e.Calibrate(context.Background())
	c.Assert(errcode.Of(err), qt.Equals, errcode.NotCalibrated)
	c.Assert(log.String(), qt.Contains, "=== Calibration Failed ===")

	c.Assert(e.State(), qt.Equals, types.Calibrated)
	ref, ok := e.Reference()
	c.Assert(ok, qt.IsTrue)
	c.Assert(ref, qt.Equals, float32(50))
	snap := e.Snapshot()
	c.Assert(snap.ReferenceCM, qt.Equals, float32(50))
	c.Assert(snap.Valid, qt.Equals, 0)

	for _, tc := range []struct {
		cm   float32
		full bool
	}{{49, false}, {30, true}} {
		m.steps, m.i = vals(tc.cm), 0
		full, _, err := e.IsBinFull(context.Background())
		c.Assert(err, qt.IsNil)
		c.Assert(full, qt.Equals, tc.full, qt.Commentf("cm=%v", tc.cm))
	}
}

func TestCancelledRecalibrateKeepsReference(t *testing.T) {
	c := qt.New(t)
	m := &scriptMeasurer{steps: vals(50, 20)}
	e, _, _ := newTestEngine(m, 1)
	c.Assert(e.Calibrate(context.Background()), qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(e.Calibrate(ctx), qt.ErrorIs, context.Canceled)
	c.Assert(e.State(), qt.Equals, types.Calibrated)
	ref, _ := e.Reference()
	c.Assert(ref, qt.Equals, float32(50))
}

func TestFullRule(t *testing.T) {
	c := qt.New(t)
	c.Assert(Full(30, 50, 15), qt.IsTrue)
	c.Assert(Full(40, 50, 15), qt.IsFalse)
}
