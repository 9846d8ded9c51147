package irrigation_controller

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
)

func TestParseDecisionRequest_Valid(t *testing.T) {
	in, err := ParseDecisionRequest(DecisionRequest{ValveDiameter: " 5 ", SoilType: "2", FieldArea: "100.5"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, in.ValveDiameter)
	assert.Equal(t, entities.SoilLoamy, in.Soil)
	assert.Equal(t, 100.5, in.FieldAreaM2)
}

func TestParseDecisionRequest_UnknownSoilCodeIsAccepted(t *testing.T) {
	in, err := ParseDecisionRequest(DecisionRequest{ValveDiameter: "5", SoilType: "9", FieldArea: "10"})
	require.NoError(t, err)
	assert.Equal(t, entities.SoilType(9), in.Soil)
	assert.Equal(t, entities.DefaultDepthMM, in.Soil.DepthMM())
}

func TestParseDecisionRequest_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		req   DecisionRequest
		field string
	}{
		{"missing valve", DecisionRequest{SoilType: "1", FieldArea: "10"}, "valve_diameter"},
		{"text valve", DecisionRequest{ValveDiameter: "wide", SoilType: "1", FieldArea: "10"}, "valve_diameter"},
		{"zero valve", DecisionRequest{ValveDiameter: "0", SoilType: "1", FieldArea: "10"}, "valve_diameter"},
		{"nan valve", DecisionRequest{ValveDiameter: "NaN", SoilType: "1", FieldArea: "10"}, "valve_diameter"},
		{"float soil", DecisionRequest{ValveDiameter: "5", SoilType: "1.5", FieldArea: "10"}, "soil_type"},
		{"missing soil", DecisionRequest{ValveDiameter: "5", FieldArea: "10"}, "soil_type"},
		{"negative area", DecisionRequest{ValveDiameter: "5", SoilType: "1", FieldArea: "-3"}, "field_area"},
		{"inf area", DecisionRequest{ValveDiameter: "5", SoilType: "1", FieldArea: "+Inf"}, "field_area"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDecisionRequest(tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, &Error{Kind: KindValidation, Field: tc.field})
		})
	}
}

func TestAssemble_OrderAndValidation(t *testing.T) {
	in := DecisionInput{ValveDiameter: 5, Soil: entities.SoilClay, FieldAreaM2: 100}

	v, err := Assemble(in, 55, 28, 0)
	require.NoError(t, err)
	assert.Equal(t, FeatureVector{0, 28, 55, 5, 3}, v)

	_, err = Assemble(in, math.NaN(), 28, 0)
	assert.ErrorIs(t, err, &Error{Kind: KindValidation, Field: "soil_moisture"})

	_, err = Assemble(in, 55, math.Inf(1), 0)
	assert.ErrorIs(t, err, &Error{Kind: KindValidation, Field: "temperature"})

	_, err = Assemble(DecisionInput{ValveDiameter: 0, Soil: 1, FieldAreaM2: 1}, 1, 1, 1)
	assert.ErrorIs(t, err, &Error{Kind: KindValidation, Field: "valve_diameter"})
}

func TestError_KindMatching(t *testing.T) {
	err := sourceError("Could not fetch soil moisture.", errors.New("broker down"))

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, KindSourceUnavailable, KindOf(err))
	assert.Equal(t, "Could not fetch soil moisture.", UserMessage(err))
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
