package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

type moistureFunc func(ctx context.Context) (float64, error)

func (f moistureFunc) Read(ctx context.Context) (float64, error) { return f(ctx) }

type weatherFunc func(ctx context.Context, location string) (entities.WeatherObservation, error)

func (f weatherFunc) Current(ctx context.Context, location string) (entities.WeatherObservation, error) {
	return f(ctx, location)
}

type controlWrite struct {
	path  string
	value float64
}

type recordingControl struct {
	mu     sync.Mutex
	writes []controlWrite
	err    error
}

func (c *recordingControl) Write(_ context.Context, path string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, controlWrite{path, value})
	return nil
}

type memoryLog struct {
	mu     sync.Mutex
	events []messages.IrrigationEvent
}

func (l *memoryLog) Append(e messages.IrrigationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *memoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func fixedMoisture(pct float64) MoistureSource {
	return moistureFunc(func(context.Context) (float64, error) { return pct, nil })
}

func fixedWeather(temp float64) WeatherSource {
	return weatherFunc(func(context.Context, string) (entities.WeatherObservation, error) {
		return entities.WeatherObservation{TemperatureC: temp, HumidityPct: 60, Description: "Clear Sky"}, nil
	})
}

type fixture struct {
	pipeline *Pipeline
	control  *recordingControl
	log      *memoryLog
	metrics  *Metrics
}

func newFixture(t *testing.T, predictor Predictor, moisture MoistureSource, weather WeatherSource) *fixture {
	t.Helper()
	f := &fixture{control: &recordingControl{}, log: &memoryLog{}, metrics: NewMetrics(prometheus.NewRegistry())}
	p, err := NewPipeline(predictor, moisture, weather, f.control, f.log, Options{
		SourceTimeout: 200 * time.Millisecond,
		Metrics:       f.metrics,
		Now:           func() time.Time { return time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

var loamy100 = DecisionRequest{ValveDiameter: "5", SoilType: "2", FieldArea: "100"}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t, FixedRate(40), fixedMoisture(55), fixedWeather(28))

	trace, d, err := f.pipeline.Run(context.Background(), loamy100)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, "0 sec", d.PumpRunTime)
	assert.Equal(t, "2.00", d.TotalVolume)
	assert.Equal(t, "40", d.DischargeRate)
	assert.Equal(t, 33.33, d.EfficiencyPercentage)
	assert.Equal(t, entities.MoistureOptimal, d.Moisture.Status)
	assert.Zero(t, trace.Warnings())

	require.Len(t, f.control.writes, 1)
	assert.Equal(t, messages.RuntimeControlPath, f.control.writes[0].path)
	assert.Equal(t, 0.05, f.control.writes[0].value)

	require.Equal(t, 1, f.log.Len())
	ev := f.log.events[0]
	assert.Equal(t, d.ID, ev.ID)
	assert.InDelta(t, 2.0, ev.SmartVolumeM3, 1e-9)
	assert.InDelta(t, 3.0, ev.BaselineVolumeM3, 1e-9)

	steps := trace.Steps()
	assert.Contains(t, steps[0], "Received user input")
	assert.Contains(t, steps[1], "55%")
	assert.Contains(t, steps[1], "Optimal")
	assert.Contains(t, strings.Join(steps, "\n"), "[0, 28, 55, 5, 2]")
	assert.Contains(t, steps[len(steps)-1], "Logged irrigation event")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Decisions.WithLabelValues("ok")))
}

func TestRun_ClampsNonPositivePrediction(t *testing.T) {
	f := newFixture(t, FixedRate(-5), fixedMoisture(30), fixedWeather(20))

	trace, d, err := f.pipeline.Run(context.Background(), loamy100)
	require.NoError(t, err)

	assert.Equal(t, "0.1", d.DischargeRate)
	assert.Equal(t, "20 sec", d.PumpRunTime)
	assert.Equal(t, 1, trace.Warnings())
	assert.Contains(t, strings.Join(trace.Steps(), "\n"), "Clamping to 0.1")
	assert.Equal(t, 20.0, f.control.writes[0].value)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Clamps))
}

func TestRun_UnknownSoilUsesDefaultDepth(t *testing.T) {
	f := newFixture(t, FixedRate(1), fixedMoisture(50), fixedWeather(25))

	trace, d, err := f.pipeline.Run(context.Background(), DecisionRequest{ValveDiameter: "5", SoilType: "7", FieldArea: "100"})
	require.NoError(t, err)
	assert.Equal(t, "2.00", d.TotalVolume)
	assert.Equal(t, 1, trace.Warnings())
	assert.Contains(t, strings.Join(trace.Steps(), "\n"), "default 20 mm")
}

func TestRun_HugeFieldAreaFormatsLongRuntime(t *testing.T) {
	f := newFixture(t, FixedRate(0.1), fixedMoisture(50), fixedWeather(25))

	_, d, err := f.pipeline.Run(context.Background(), DecisionRequest{ValveDiameter: "5", SoilType: "2", FieldArea: "1e22"})
	require.NoError(t, err)
	assert.InEpsilon(t, 2e21, d.RuntimeSeconds, 1e-12)

	var minutes, remaining float64
	_, err = fmt.Sscanf(d.PumpRunTime, "%g min, %g sec", &minutes, &remaining)
	require.NoError(t, err, d.PumpRunTime)
	assert.InEpsilon(t, 2e21/60, minutes, 1e-9)
	assert.LessOrEqual(t, remaining, 60.0)
}

func TestRun_ValidationFailureHasSingleStep(t *testing.T) {
	var fetched bool
	moisture := moistureFunc(func(context.Context) (float64, error) { fetched = true; return 50, nil })
	f := newFixture(t, FixedRate(40), moisture, fixedWeather(20))

	trace, d, err := f.pipeline.Run(context.Background(), DecisionRequest{ValveDiameter: "abc", SoilType: "2", FieldArea: "100"})
	require.Error(t, err)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, trace.Len())
	assert.Contains(t, trace.Steps()[0], "valve_diameter")
	assert.False(t, fetched)
	assert.Zero(t, f.log.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Decisions.WithLabelValues("validation")))
}

func TestRun_MoistureFailureAborts(t *testing.T) {
	moisture := moistureFunc(func(context.Context) (float64, error) { return 0, errors.New("sensor offline") })
	f := newFixture(t, FixedRate(40), moisture, fixedWeather(20))

	trace, d, err := f.pipeline.Run(context.Background(), loamy100)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, "Could not fetch soil moisture.", UserMessage(err))
	assert.Equal(t, 2, trace.Len())
	assert.Empty(t, f.control.writes)
	assert.Zero(t, f.log.Len())
}

func TestRun_WeatherTimeoutIsSourceUnavailable(t *testing.T) {
	slow := weatherFunc(func(ctx context.Context, _ string) (entities.WeatherObservation, error) {
		<-ctx.Done()
		return entities.WeatherObservation{}, ctx.Err()
	})
	f := newFixture(t, FixedRate(40), fixedMoisture(50), slow)

	trace, _, err := f.pipeline.Run(context.Background(), loamy100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "Could not fetch weather forecast.", UserMessage(err))
	assert.Equal(t, 3, trace.Len())
	assert.Zero(t, f.log.Len())
}

func TestRun_WeatherReceivesConfiguredLocation(t *testing.T) {
	var got string
	weather := weatherFunc(func(_ context.Context, loc string) (entities.WeatherObservation, error) {
		got = loc
		return entities.WeatherObservation{TemperatureC: 25}, nil
	})
	f := newFixture(t, FixedRate(40), fixedMoisture(50), weather)

	_, _, err := f.pipeline.Run(context.Background(), loamy100)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, got)
}

func TestRun_PredictorErrors(t *testing.T) {
	cases := map[string]Predictor{
		"error": PredictorFunc(func(FeatureVector) (float64, error) { return 0, errors.New("model not loaded") }),
		"panic": PredictorFunc(func(FeatureVector) (float64, error) { panic("index out of range") }),
		"nan": PredictorFunc(func(FeatureVector) (float64, error) {
			var zero float64
			return zero / zero, nil
		}),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, p, fixedMoisture(50), fixedWeather(20))
			trace, d, err := f.pipeline.Run(context.Background(), loamy100)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, ErrPrediction)
			assert.Equal(t, "Failed to run prediction model.", UserMessage(err))
			assert.Contains(t, trace.Steps()[trace.Len()-1], "Model prediction failed")
			assert.Zero(t, f.log.Len())
		})
	}
}

func TestRun_ControlFailureIsOnlyAWarning(t *testing.T) {
	f := newFixture(t, FixedRate(40), fixedMoisture(50), fixedWeather(20))
	f.control.err = errors.New("device unreachable")

	trace, d, err := f.pipeline.Run(context.Background(), loamy100)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 1, trace.Warnings())
	assert.Contains(t, strings.Join(trace.Steps(), "\n"), "device unreachable")
	assert.Equal(t, 1, f.log.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ControlFailures))
}

func TestRun_NilControlChannelSkipsWrite(t *testing.T) {
	log := &memoryLog{}
	p, err := NewPipeline(FixedRate(40), fixedMoisture(50), fixedWeather(20), nil, log, Options{})
	require.NoError(t, err)

	trace, d, err := p.Run(context.Background(), loamy100)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Zero(t, trace.Warnings())
	assert.Equal(t, 1, log.Len())
}

func TestRun_CancelledBeforeLedgerWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := &memoryLog{}
	control := ControlChannelFunc(func(context.Context, string, float64) error {
		cancel()
		return nil
	})
	p, err := NewPipeline(FixedRate(40), fixedMoisture(50), fixedWeather(20), control, log, Options{})
	require.NoError(t, err)

	trace, d, err := p.Run(ctx, loamy100)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, trace.Steps()[trace.Len()-1], "cancelled")
	assert.Zero(t, log.Len())
}

func TestRun_CancelledContextIsNotASourceFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t, FixedRate(40), fixedMoisture(50), fixedWeather(20))

	_, _, err := f.pipeline.Run(ctx, loamy100)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestRun_ConcurrentRunsLogEveryEvent(t *testing.T) {
	f := newFixture(t, FixedRate(12.5), fixedMoisture(50), fixedWeather(20))

	const n = 64
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := DecisionRequest{ValveDiameter: "5", SoilType: fmt.Sprint(i%3 + 1), FieldArea: "250"}
			_, d, err := f.pipeline.Run(context.Background(), req)
			if assert.NoError(t, err) {
				ids <- d.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, f.log.Len())
}

func TestRun_WithTrainedForest(t *testing.T) {
	model, err := TrainDischargeModel(smallModel())
	require.NoError(t, err)
	f := newFixture(t, model, fixedMoisture(55), fixedWeather(28))

	_, d, err := f.pipeline.Run(context.Background(), loamy100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.RateM3s, MinDischargeRate)
	assert.Equal(t, "2.00", d.TotalVolume)
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, fixedMoisture(1), fixedWeather(1), nil, &memoryLog{}, Options{})
	assert.Error(t, err)
	_, err = NewPipeline(FixedRate(1), nil, fixedWeather(1), nil, &memoryLog{}, Options{})
	assert.Error(t, err)
	_, err = NewPipeline(FixedRate(1), fixedMoisture(1), fixedWeather(1), nil, nil, Options{})
	assert.Error(t, err)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "FEATURES_VALIDATED", StageFeaturesValidated.String())
	assert.Equal(t, "ABORTED", StageAborted.String())
	assert.Equal(t, "UNKNOWN", Stage(99).String())
}
