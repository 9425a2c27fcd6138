package types

import (
	"encoding/json"
	"testing"
	"time"

	"smartbin-go/errcode"

	qt "github.com/frankban/quicktest"
)

func TestDefaultMonitorConfigIsValid(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultMonitorConfig()
	c.Assert(cfg.Validate(), qt.IsNil)
	c.Assert(cfg.Settle(), qt.Equals, 100*time.Millisecond)
	c.Assert(cfg.TriggerWidth(), qt.Equals, 10*time.Microsecond)
	c.Assert(cfg.CalibrationGap(), qt.Equals, time.Second)
	c.Assert(cfg.ButtonDebounce(), qt.Equals, 500*time.Millisecond)
}

func TestDefaultsFillsOnlyZeroFields(t *testing.T) {
	c := qt.New(t)
	var cfg MonitorConfig
	c.Assert(json.Unmarshal([]byte(`{"samples":7,"full_offset_cm":20}`), &cfg), qt.IsNil)
	cfg.Defaults()

	want := DefaultMonitorConfig()
	want.Samples = 7
	want.FullOffsetCM = 20
	c.Assert(cfg, qt.DeepEquals, want)
	c.Assert(cfg.Validate(), qt.IsNil)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*MonitorConfig){
		"no samples":        func(m *MonitorConfig) { m.Samples = 0 },
		"short trigger":     func(m *MonitorConfig) { m.TriggerWidthUs = 5 },
		"no attempts":       func(m *MonitorConfig) { m.CalibrationAttempts = 0 },
		"zero offset":       func(m *MonitorConfig) { m.FullOffsetCM = 0 },
		"light level":       func(m *MonitorConfig) { m.LightOffLevel = 1.2 },
		"soil coincide":     func(m *MonitorConfig) { m.SoilWetRaw = m.SoilDryRaw },
		"soil 16 bit":       func(m *MonitorConfig) { m.SoilDryRaw = 65000 },
		"day after night":   func(m *MonitorConfig) { m.DayStartHour = 21 },
		"negative settle":   func(m *MonitorConfig) { m.SettleMs = -1 },
		"dry pct above 100": func(m *MonitorConfig) { m.SoilDryPct = 101 },
	}
	for name, mut := range tests {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			cfg := DefaultMonitorConfig()
			mut(&cfg)
			err := cfg.Validate()
			c.Assert(err, qt.IsNotNil)
			c.Assert(errcode.Of(err), qt.Equals, errcode.InvalidParams)
		})
	}
}
