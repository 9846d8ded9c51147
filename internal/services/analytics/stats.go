package analytics

import "math"

// Stats is the savings report served to the dashboard.
type Stats struct {
	TotalWaterSaved   float64   `json:"total_water_saved" yaml:"total_water_saved"`
	SavingsPercentage float64   `json:"savings_percentage" yaml:"savings_percentage"`
	ChartData         ChartData `json:"chart_data" yaml:"chart_data"`
}

// ChartData holds one point per event, in ledger order.
type ChartData struct {
	Labels        []string  `json:"labels" yaml:"labels"`
	SmartUsage    []float64 `json:"smart_usage" yaml:"smart_usage"`
	BaselineUsage []float64 `json:"baseline_usage" yaml:"baseline_usage"`
}

// NewStats rounds a Summary for display: saved volume and series to 2
// decimals, the percentage to 1.
func NewStats(s Summary) Stats {
	return Stats{
		TotalWaterSaved:   roundTo(s.TotalSavedM3, 2),
		SavingsPercentage: roundTo(s.SavingsPct, 1),
		ChartData: ChartData{
			Labels:        append([]string{}, s.Labels...),
			SmartUsage:    roundAll(s.SmartSeries, 2),
			BaselineUsage: roundAll(s.BaselineSeries, 2),
		},
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.RoundToEven(v*p) / p
}

func roundAll(vs []float64, places int) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = roundTo(v, places)
	}
	return out
}
