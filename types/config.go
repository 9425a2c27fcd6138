package types

import (
	"time"

	"smartbin-go/errcode"
)

// Monitor configuration supplied on topic "config/monitor". Durations are
// integer milliseconds (microseconds for the trigger) so the document stays
// plain JSON.

type MonitorConfig struct {
	// Ultrasonic chain
	Samples        int `json:"samples"`
	SettleMs       int `json:"settle_ms"`
	TriggerWidthUs int `json:"trigger_width_us"`

	// Calibration and threshold
	CalibrationAttempts int     `json:"calibration_attempts"`
	CalibrationGapMs    int     `json:"calibration_gap_ms"`
	FullOffsetCM        float32 `json:"full_offset_cm"`

	// Environment
	LightOffLevel float32 `json:"light_off_level"` // fraction of full scale
	SoilDryRaw    uint16  `json:"soil_dry_raw"`    // 12-bit reading in air
	SoilWetRaw    uint16  `json:"soil_wet_raw"`    // 12-bit reading in water
	SoilInverted  bool    `json:"soil_inverted"`
	SoilDryPct    uint16  `json:"soil_dry_pct"`
	DayStartHour  int     `json:"day_start_hour"`
	NightStartHr  int     `json:"night_start_hour"`

	// Demo clock toggle
	ButtonDebounceMs int   `json:"button_debounce_ms"`
	ToggleNightUnix  int64 `json:"toggle_night_unix"`
	ToggleDayUnix    int64 `json:"toggle_day_unix"`

	// InitialTimeUnix, when non-zero, is written to the RTC at boot.
	InitialTimeUnix int64 `json:"initial_time_unix"`
}

// DefaultMonitorConfig holds the values the firmware shipped with.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Samples:             5,
		SettleMs:            100,
		TriggerWidthUs:      10,
		CalibrationAttempts: 3,
		CalibrationGapMs:    1000,
		FullOffsetCM:        15,
		LightOffLevel:       0.7,
		SoilDryRaw:          4000,
		SoilWetRaw:          1200,
		SoilDryPct:          30,
		DayStartHour:        8,
		NightStartHr:        20,
		ButtonDebounceMs:    500,
		ToggleNightUnix:     1757451600, // 2025-09-09 21:00:00 UTC
		ToggleDayUnix:       1760091115, // 2025-10-10 10:11:55 UTC
	}
}

// Defaults fills zero fields from DefaultMonitorConfig. Booleans and
// InitialTimeUnix are left alone.
func (c *MonitorConfig) Defaults() {
	d := DefaultMonitorConfig()
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	setInt(&c.Samples, d.Samples)
	setInt(&c.SettleMs, d.SettleMs)
	setInt(&c.TriggerWidthUs, d.TriggerWidthUs)
	setInt(&c.CalibrationAttempts, d.CalibrationAttempts)
	setInt(&c.CalibrationGapMs, d.CalibrationGapMs)
	setInt(&c.DayStartHour, d.DayStartHour)
	setInt(&c.NightStartHr, d.NightStartHr)
	setInt(&c.ButtonDebounceMs, d.ButtonDebounceMs)
	if c.FullOffsetCM == 0 {
		c.FullOffsetCM = d.FullOffsetCM
	}
	if c.LightOffLevel == 0 {
		c.LightOffLevel = d.LightOffLevel
	}
	if c.SoilDryRaw == 0 {
		c.SoilDryRaw = d.SoilDryRaw
	}
	if c.SoilWetRaw == 0 {
		c.SoilWetRaw = d.SoilWetRaw
	}
	if c.SoilDryPct == 0 {
		c.SoilDryPct = d.SoilDryPct
	}
	if c.ToggleNightUnix == 0 {
		c.ToggleNightUnix = d.ToggleNightUnix
	}
	if c.ToggleDayUnix == 0 {
		c.ToggleDayUnix = d.ToggleDayUnix
	}
}

func (c MonitorConfig) Validate() error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "monitor.config", Msg: msg}
	}
	switch {
	case c.Samples < 1:
		return bad("samples must be >= 1")
	case c.SettleMs < 0 || c.CalibrationGapMs < 0:
		return bad("negative delay")
	case c.TriggerWidthUs < 10:
		return bad("trigger width below 10us")
	case c.CalibrationAttempts < 1:
		return bad("calibration_attempts must be >= 1")
	case c.FullOffsetCM <= 0:
		return bad("full_offset_cm must be > 0")
	case c.LightOffLevel <= 0 || c.LightOffLevel >= 1:
		return bad("light_off_level must be in (0,1)")
	case c.SoilDryRaw == c.SoilWetRaw:
		return bad("soil dry and wet points coincide")
	case c.SoilDryRaw > 4095 || c.SoilWetRaw > 4095:
		return bad("soil points exceed 12 bits")
	case c.SoilDryPct > 100:
		return bad("soil_dry_pct above 100")
	case c.DayStartHour < 0 || c.DayStartHour > 23 || c.NightStartHr < 0 || c.NightStartHr > 24:
		return bad("hour out of range")
	case c.DayStartHour >= c.NightStartHr:
		return bad("day must start before night")
	}
	return nil
}

func (c MonitorConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

func (c MonitorConfig) TriggerWidth() time.Duration {
	return time.Duration(c.TriggerWidthUs) * time.Microsecond
}

func (c MonitorConfig) CalibrationGap() time.Duration {
	return time.Duration(c.CalibrationGapMs) * time.Millisecond
}

func (c MonitorConfig) ButtonDebounce() time.Duration {
	return time.Duration(c.ButtonDebounceMs) * time.Millisecond
}

// ---- Heartbeat (topic "config/heartbeat") ----

// The heartbeat paces measurements; the firmware measured every 5 s.
type HeartbeatConfig struct {
	IntervalS float64 `json:"interval"`
}

const DefaultHeartbeatInterval = 5 * time.Second
