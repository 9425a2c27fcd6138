package monitor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"smartbin-go/errcode"
	"smartbin-go/services/hal/util"
	"smartbin-go/types"
	"smartbin-go/x/timex"
)

// Measurer yields one filtered distance in centimetres. Negative values
// are invalid.
type Measurer interface {
	Measure(ctx context.Context) (float32, error)
}

type EngineConfig struct {
	Attempts     int
	Gap          time.Duration
	FullOffsetCM float32
}

// Engine owns the calibration baseline and the bin-full rule.
//
//	Uncalibrated --Calibrate--> Calibrating --(>=1 valid)--> Calibrated
//	                                        \--(0 valid)---> Uncalibrated
//
// Calibrate may be called again from any state. Once a reference has been
// taken it stays in force, through a re-run and after a failed one, until a
// successful run replaces it.
type Engine struct {
	m   Measurer
	cfg EngineConfig
	log io.Writer

	// Sleep waits between attempts. Defaults to util.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    types.CalibrationState
	ref      float32
	hasRef   bool
	valid    int
	attempts int
	calTS    int64
}

func NewEngine(m Measurer, cfg EngineConfig, log io.Writer) *Engine {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if log == nil {
		log = io.Discard
	}
	return &Engine{m: m, cfg: cfg, log: log, Sleep: util.Sleep, state: types.Uncalibrated}
}

// Calibrate takes the configured number of measurements, pausing Gap after
// each, and stores the mean of the valid ones as the reference. It returns
// errcode.NotCalibrated when none was valid, or ctx.Err() if cancelled;
// either way the previous reference, if any, is kept and the engine goes
// back to Calibrated with it, otherwise it ends Uncalibrated.
func (e *Engine) Calibrate(ctx context.Context) error {
	e.mu.Lock()
	e.state = types.Calibrating
	cfg := e.cfg
	e.mu.Unlock()

	fmt.Fprintf(e.log, "\r\n=== Starting Calibration ===\r\n")

	var sum float32
	valid, made := 0, 0
	var err error
	for i := 0; i < cfg.Attempts; i++ {
		var v float32
		made++
		v, err = e.m.Measure(ctx)
		if err == nil && v >= 0 {
			sum += v
			valid++
		} else {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(e.log, "Calibration %d failed\r\n", i+1)
		}
		if err = e.Sleep(ctx, cfg.Gap); err != nil {
			break
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.valid, e.attempts, e.calTS = valid, made, timex.NowMs()

	if cerr := ctx.Err(); cerr != nil {
		e.state = e.fallbackState()
		fmt.Fprintf(e.log, "=== Calibration Failed ===\r\n==========================\r\n\r\n")
		return cerr
	}
	if valid == 0 {
		e.state = e.fallbackState()
		fmt.Fprintf(e.log, "=== Calibration Failed ===\r\n==========================\r\n\r\n")
		return &errcode.E{C: errcode.NotCalibrated, Op: "engine.calibrate", Msg: "no valid measurement"}
	}
	e.ref, e.hasRef = sum/float32(valid), true
	e.state = types.Calibrated
	fmt.Fprintf(e.log, "=== Calibration Complete ===\r\n")
	fmt.Fprintf(e.log, "HCS-04 reference value: %.0f cm\r\n", e.ref)
	fmt.Fprintf(e.log, "============================\r\n\r\n")
	return nil
}

// IsBinFull takes a fresh measurement and applies the threshold rule:
// full when it is more than FullOffsetCM closer than the reference. An
// uncalibrated engine always reports full, as does a failed measurement.
// The measured value is returned for reporting (0 on error).
func (e *Engine) IsBinFull(ctx context.Context) (full bool, cm float32, err error) {
	cm, err = e.m.Measure(ctx)
	if err != nil {
		return true, 0, err
	}
	e.mu.Lock()
	calibrated, ref, offset := e.hasRef, e.ref, e.cfg.FullOffsetCM
	e.mu.Unlock()
	if !calibrated {
		return true, cm, nil
	}
	return Full(cm, ref, offset), cm, nil
}

// Full is the threshold rule on its own.
func Full(current, reference, offset float32) bool {
	return current-reference < -offset
}

// SetConfig replaces attempt count, gap and offset. The reference is kept.
func (e *Engine) SetConfig(cfg EngineConfig) {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) State() types.CalibrationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reference returns the baseline and whether it is in force.
func (e *Engine) Reference() (float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ref, e.hasRef
}

func (e *Engine) fallbackState() types.CalibrationState {
	if e.hasRef {
		return types.Calibrated
	}
	return types.Uncalibrated
}

// Snapshot is the retained calibration document.
func (e *Engine) Snapshot() types.CalibrationValue {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := types.CalibrationValue{State: e.state, Valid: e.valid, Attempts: e.attempts, TS: e.calTS}
	if e.hasRef {
		v.ReferenceCM = e.ref
	}
	return v
}
