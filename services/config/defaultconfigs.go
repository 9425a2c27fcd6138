package config

// Embedded configuration, keyed by device ID (the value placed in ctx under
// CtxDeviceKey). Each top-level key becomes the retained topic config/<key>.

const cfgPico = `{
  "heartbeat": {
    "interval": 5
  },
  "monitor": {
    "samples": 5,
    "settle_ms": 100,
    "calibration_attempts": 3,
    "calibration_gap_ms": 1000,
    "full_offset_cm": 15,
    "light_off_level": 0.7,
    "soil_dry_raw": 4000,
    "soil_wet_raw": 1200,
    "soil_dry_pct": 30,
    "day_start_hour": 8,
    "night_start_hour": 20,
    "button_debounce_ms": 500
  }
}`

// The simulator runs the same logic on a faster clock.
const cfgSim = `{
  "heartbeat": {
    "interval": 1
  },
  "monitor": {
    "samples": 5,
    "settle_ms": 20,
    "calibration_attempts": 3,
    "calibration_gap_ms": 100
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"pi":   []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
