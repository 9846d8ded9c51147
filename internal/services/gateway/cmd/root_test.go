package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "decide", "model"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "irrigation", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDecideCommand_Flags(t *testing.T) {
	for _, name := range []string{"valve", "soil", "area", "output", "wait"} {
		require.NotNil(t, decideCmd.Flags().Lookup(name), "decide should have --%s", name)
	}
	assert.Equal(t, "json", decideCmd.Flags().Lookup("output").DefValue)
	assert.Equal(t, "o", decideCmd.Flags().Lookup("output").Shorthand)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestModelConfig_FallsBackToDefaults(t *testing.T) {
	mc := modelConfig(config.ModelConfig{Seed: 7})
	assert.Equal(t, uint64(7), mc.Seed)
	assert.Equal(t, 100, mc.Samples)
	assert.Equal(t, 100, mc.Estimators)
	assert.Equal(t, 15.0, mc.NoiseStd)
}

func TestRenderOutcome(t *testing.T) {
	out := decideOutcome{
		Steps: []string{"[ok] one", "[calc] two"},
		Decision: &ic.Decision{
			PumpRunTime:          "20 sec",
			TotalVolume:          "2.00",
			DischargeRate:        "0.1",
			EfficiencyPercentage: 33.33,
		},
	}

	var js bytes.Buffer
	require.NoError(t, renderOutcome(&js, "json", out))
	assert.Contains(t, js.String(), `"pump_run_time": "20 sec"`)
	assert.NotContains(t, js.String(), `"error"`)

	var ys bytes.Buffer
	require.NoError(t, renderOutcome(&ys, "yaml", out))
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(ys.Bytes(), &back))
	dec := back["decision"].(map[string]any)
	assert.Equal(t, "20 sec", dec["pump_run_time"])
	assert.Equal(t, "2.00", dec["total_volume"])
	assert.True(t, strings.HasPrefix(ys.String(), "steps:"))
}

func TestRenderOutcome_Error(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, "yaml", decideOutcome{Steps: []string{"[error] x"}, Error: "Could not fetch soil moisture."}))
	assert.Contains(t, buf.String(), "error: Could not fetch soil moisture.")
	assert.NotContains(t, buf.String(), "decision:")
}
