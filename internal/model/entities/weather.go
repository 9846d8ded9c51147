package entities

// WeatherObservation is the current weather at the configured location.
// RainfallMM is the short-term rainfall estimate used as a model feature.
type WeatherObservation struct {
	TemperatureC float64 `json:"temperature"`
	RainfallMM   float64 `json:"rainfall"`
	HumidityPct  float64 `json:"humidity"`
	Description  string  `json:"description"`
}
