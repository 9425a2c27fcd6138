package types

// ---- Signals ----

type Kind string

const (
	KindBin         Kind = "bin"
	KindPump        Kind = "pump"
	KindCalibration Kind = "calibration"
	KindSignals     Kind = "signals"
	KindBulb        Kind = "bulb"
)

// ---- Calibration state (retained on monitor/state/calibration) ----

type CalibrationState string

const (
	Uncalibrated CalibrationState = "uncalibrated"
	Calibrating  CalibrationState = "calibrating"
	Calibrated   CalibrationState = "calibrated"
)

type CalibrationValue struct {
	State       CalibrationState `json:"state"`
	ReferenceCM float32          `json:"reference_cm"`
	Valid       int              `json:"valid"`    // attempts that produced a reading
	Attempts    int              `json:"attempts"` // attempts made
	TS          int64            `json:"ts_ms"`
}

// ---- Values (retained on monitor/value/<kind>) ----

type BinValue struct {
	Full        bool    `json:"full"`
	DistanceCM  float32 `json:"distance_cm"`
	ReferenceCM float32 `json:"reference_cm"`
	Calibrated  bool    `json:"calibrated"`
	Error       string  `json:"error,omitempty"`
	TS          int64   `json:"ts_ms"`
}

type PumpValue struct {
	On bool  `json:"on"`
	TS int64 `json:"ts_ms"`
}

// SignalsValue is the environment snapshot behind the pump and bulb
// decisions.
type SignalsValue struct {
	LightOff bool   `json:"light_off"`
	SoilPct  uint16 `json:"soil_pct"`
	SoilDry  bool   `json:"soil_dry"`
	Raining  bool   `json:"raining"`
	Night    bool   `json:"night"`
	Clock    string `json:"clock"` // [hh:mm:ss]
	TS       int64  `json:"ts_ms"`
}

// ---- Events (monitor/event/<kind>) ----

// NotificationEvent is emitted once per transition of an edge-triggered
// signal.
type NotificationEvent struct {
	Signal  Kind   `json:"signal"`
	Active  bool   `json:"active"`
	Message string `json:"message"`
	Clock   string `json:"clock"`
	TS      int64  `json:"ts_ms"`
}

// ---- Control replies (monitor/control/<verb>) ----

type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Value any    `json:"value,omitempty"`
}

// StatusValue answers monitor/control/status.
type StatusValue struct {
	Calibration CalibrationValue `json:"calibration"`
	Bin         BinValue         `json:"bin"`
	Pump        PumpValue        `json:"pump"`
	Signals     SignalsValue     `json:"signals"`
	EchoCount   uint32           `json:"echo_count"`
	ISRDrops    uint32           `json:"isr_drops"`
}
