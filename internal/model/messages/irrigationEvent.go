package messages

import "time"

// IrrigationEvent is the analytics record appended once per successful decision.
// It is immutable after creation.
type IrrigationEvent struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	SmartVolumeM3    float64   `json:"smart_volume_m3"`
	BaselineVolumeM3 float64   `json:"baseline_volume_m3"`
}
