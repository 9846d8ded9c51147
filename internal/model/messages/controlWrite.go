package messages

import "time"

// RuntimeControlPath is the control path carrying the pump runtime in seconds.
const RuntimeControlPath = "/control/pump_runtime_seconds"

// ControlWrite is the payload carried by the control channel: one value for one control path.
type ControlWrite struct {
	DecisionID string    `json:"decision_id,omitempty"`
	Path       string    `json:"path"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}
