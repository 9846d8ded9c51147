package app

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
)

// HandlePredict runs a decision from form fields valve_diameter, soil_type and
// field_area. Pipeline failures are reported in a 200 body next to the trace.
func (g *Gateway) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if g.limiter != nil && !g.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid form body"})
		return
	}
	req := ic.DecisionRequest{
		ValveDiameter: r.PostFormValue("valve_diameter"),
		SoilType:      r.PostFormValue("soil_type"),
		FieldArea:     r.PostFormValue("field_area"),
	}

	trace, d, err := g.cfg.Pipeline.Run(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusOK, PredictError{
			Steps: trace.Steps(),
			Error: ic.UserMessage(err),
			Kind:  string(ic.KindOf(err)),
		})
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		Steps:                trace.Steps(),
		PumpRunTime:          d.PumpRunTime,
		TotalVolume:          d.TotalVolume,
		DischargeRate:        d.DischargeRate,
		EfficiencyPercentage: d.EfficiencyPercentage,
	})
}

func (g *Gateway) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.cfg.Stats.Stats())
}

func (g *Gateway) HandleWeather(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.WidgetTimeout)
	defer cancel()

	obs, err := g.cfg.Weather.Current(ctx, g.cfg.Location)
	if err != nil {
		zap.L().Warn("gateway: weather widget", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, WeatherResponse{Description: "Error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, WeatherResponse{
		Temperature: &obs.TemperatureC,
		Humidity:    &obs.HumidityPct,
		Description: obs.Description,
	})
}

func (g *Gateway) HandleSoilMoisture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.WidgetTimeout)
	defer cancel()

	pct, err := g.cfg.Moisture.Read(ctx)
	if err != nil {
		zap.L().Warn("gateway: soil moisture widget", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, MoistureResponse{Status: "Error", Error: err.Error()})
		return
	}
	reading := entities.NewMoistureReading(pct)
	writeJSON(w, http.StatusOK, MoistureResponse{Moisture: &reading.Percent, Status: string(reading.Status)})
}

func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (g *Gateway) HandleReady(w http.ResponseWriter, r *http.Request) {
	if g.cfg.Ready != nil {
		if err := g.cfg.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("gateway: encode response", zap.Error(err))
	}
}
