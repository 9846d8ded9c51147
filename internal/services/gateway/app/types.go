package app

// PredictResponse is the /predict body for a completed decision.
type PredictResponse struct {
	Steps                []string `json:"steps"`
	PumpRunTime          string   `json:"pump_run_time"`
	TotalVolume          string   `json:"total_volume"`
	DischargeRate        string   `json:"discharge_rate"`
	EfficiencyPercentage float64  `json:"efficiency_percentage"`
}

// PredictError is the /predict body for an aborted decision.
type PredictError struct {
	Steps []string `json:"steps"`
	Error string   `json:"error"`
	Kind  string   `json:"kind,omitempty"`
}

// WeatherResponse feeds the weather widget. Nil values encode as null on failure.
type WeatherResponse struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Description string   `json:"description"`
	Error       string   `json:"error,omitempty"`
}

// MoistureResponse feeds the soil moisture widget.
type MoistureResponse struct {
	Moisture *float64 `json:"moisture"`
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}
