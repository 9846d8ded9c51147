package irrigation_controller

import (
	"math"
	"strconv"
	"strings"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
)

// Positions inside a FeatureVector. The order is the one the model was trained on.
const (
	FeatureRainfall = iota
	FeatureTemperature
	FeatureMoisture
	FeatureValveDiameter
	FeatureSoilType
	NumFeatures
)

// FeatureVector is the model input: rainfall mm, temperature °C, soil moisture %,
// valve diameter and soil type code.
type FeatureVector [NumFeatures]float64

func (v FeatureVector) Slice() []float64 { return v[:] }

// DecisionRequest carries the caller's raw form values.
type DecisionRequest struct {
	ValveDiameter string `json:"valve_diameter" yaml:"valve_diameter"`
	SoilType      string `json:"soil_type" yaml:"soil_type"`
	FieldArea     string `json:"field_area" yaml:"field_area"`
}

// DecisionInput is a parsed and validated DecisionRequest.
type DecisionInput struct {
	ValveDiameter float64
	Soil          entities.SoilType
	FieldAreaM2   float64
}

// ParseDecisionRequest converts numeric strings. Any other coercion is rejected.
func ParseDecisionRequest(req DecisionRequest) (DecisionInput, error) {
	valve, err := parsePositive("valve_diameter", req.ValveDiameter)
	if err != nil {
		return DecisionInput{}, err
	}
	soil, err := parseSoil(req.SoilType)
	if err != nil {
		return DecisionInput{}, err
	}
	area, err := parsePositive("field_area", req.FieldArea)
	if err != nil {
		return DecisionInput{}, err
	}
	return DecisionInput{ValveDiameter: valve, Soil: soil, FieldAreaM2: area}, nil
}

func parsePositive(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, validationError(field, "value is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, validationError(field, "%q is not a number", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, validationError(field, "must be finite")
	}
	if f <= 0 {
		return 0, validationError(field, "must be greater than 0")
	}
	return f, nil
}

func parseSoil(raw string) (entities.SoilType, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, validationError("soil_type", "value is required")
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, validationError("soil_type", "%q is not an integer code", raw)
	}
	return entities.SoilType(code), nil
}

// Assemble builds the feature vector from validated input and live readings.
func Assemble(in DecisionInput, moisturePct, temperatureC, rainfallMM float64) (FeatureVector, error) {
	if !(in.ValveDiameter > 0) || math.IsInf(in.ValveDiameter, 0) {
		return FeatureVector{}, validationError("valve_diameter", "must be greater than 0")
	}
	if !(in.FieldAreaM2 > 0) || math.IsInf(in.FieldAreaM2, 0) {
		return FeatureVector{}, validationError("field_area", "must be greater than 0")
	}
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"soil_moisture", moisturePct},
		{"temperature", temperatureC},
		{"rainfall", rainfallMM},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return FeatureVector{}, validationError(c.field, "must be finite")
		}
	}

	var v FeatureVector
	v[FeatureRainfall] = rainfallMM
	v[FeatureTemperature] = temperatureC
	v[FeatureMoisture] = moisturePct
	v[FeatureValveDiameter] = in.ValveDiameter
	v[FeatureSoilType] = float64(in.Soil)
	return v, nil
}
