package monitor

import (
	"time"

	"smartbin-go/services/hal/halcore"
	"smartbin-go/types"
	"smartbin-go/x/mathx"
)

// Environment readers. ADC samples are left-aligned 16-bit values.

// LightOff reports a dark photoresistor: the divider reads above level
// (a fraction of full scale).
func LightOff(adc halcore.ADC, level float32) bool {
	return float32(adc.Get())/65535 > level
}

// SoilPercent converts a 16-bit sample to 0..100 % wet using the 12-bit
// dry and wet calibration points. Readings beyond either point clamp.
// The higher point is taken as dry whichever way round they are
// configured; SoilInverted is for probes that read higher when wet.
func SoilPercent(sample uint16, cfg types.MonitorConfig) uint16 {
	raw12 := sample >> 4
	dry, wet := cfg.SoilDryRaw, cfg.SoilWetRaw
	if dry < wet {
		dry, wet = wet, dry
	}
	if cfg.SoilInverted {
		dry, wet = wet, dry
	}
	return mathx.MapU16(raw12, dry, wet, 0, 100)
}

func SoilDry(pct uint16, cfg types.MonitorConfig) bool { return pct < cfg.SoilDryPct }

// Raining reads the rain module's comparator output, which pulls low when
// wet.
func Raining(pin halcore.GPIOPin) bool { return !pin.Get() }

// Night is true before DayStartHour or from NightStartHr on.
func Night(t time.Time, cfg types.MonitorConfig) bool {
	h := t.Hour()
	return h < cfg.DayStartHour || h >= cfg.NightStartHr
}

// PumpOn is the irrigation rule: water dry soil in daylight when it is not
// raining.
func PumpOn(soilDry, night, raining bool) bool {
	return soilDry && !night && !raining
}

// ToggleTarget is the demo clock jump: into the evening during the day,
// into the morning at night.
func ToggleTarget(night bool, cfg types.MonitorConfig) time.Time {
	if night {
		return timeFromUnix(cfg.ToggleDayUnix)
	}
	return timeFromUnix(cfg.ToggleNightUnix)
}

// RTC chips hold wall time without a zone; UTC keeps Hour() unshifted.
func timeFromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
