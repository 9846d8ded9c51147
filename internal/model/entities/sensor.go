package entities

// SensorState indicates whether the irrigation valve is on or off.
type SensorState string

const (
	StateOff SensorState = "off"
	StateOn  SensorState = "on"
)

// MoistureStatus is the coarse soil condition derived from a moisture percentage.
type MoistureStatus string

const (
	MoistureDry     MoistureStatus = "Dry"
	MoistureOptimal MoistureStatus = "Optimal"
	MoistureWet     MoistureStatus = "Wet"
)

// ClassifyMoisture maps a raw percentage onto a status: >70 Wet, >40 Optimal, else Dry.
func ClassifyMoisture(pct float64) MoistureStatus {
	switch {
	case pct > 70:
		return MoistureWet
	case pct > 40:
		return MoistureOptimal
	default:
		return MoistureDry
	}
}

// MoistureReading is a soil moisture sample together with its derived status.
type MoistureReading struct {
	Percent float64        `json:"moisture"`
	Status  MoistureStatus `json:"status"`
}

// NewMoistureReading classifies pct and wraps it in a reading.
func NewMoistureReading(pct float64) MoistureReading {
	return MoistureReading{Percent: pct, Status: ClassifyMoisture(pct)}
}
