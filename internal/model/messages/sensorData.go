package messages

import (
	"time"
)

// this will hold both real-time and aggregated data.
type SensorData struct {
	FieldID    string    `json:"field_id"`
	SensorID   string    `json:"sensor_id"`
	Moisture   float64   `json:"moisture"` // percentuale 0..100
	Aggregated bool      `json:"aggregated"`
	Timestamp  time.Time `json:"timestamp"`
}
