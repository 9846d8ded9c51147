package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

// DefaultLocation is the weather location used when none is configured.
const DefaultLocation = "Kolkata,IN"

// Stage is the position of a run in the decision state machine.
type Stage int

const (
	StageStart Stage = iota
	StageFeaturesValidated
	StagePredicted
	StageVolumeComputed
	StageRuntimeComputed
	StagePersisted
	StageLogged
	StageDone
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageFeaturesValidated:
		return "FEATURES_VALIDATED"
	case StagePredicted:
		return "PREDICTED"
	case StageVolumeComputed:
		return "VOLUME_COMPUTED"
	case StageRuntimeComputed:
		return "RUNTIME_COMPUTED"
	case StagePersisted:
		return "PERSISTED"
	case StageLogged:
		return "LOGGED"
	case StageDone:
		return "DONE"
	case StageAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Decision is the successful outcome of a run.
type Decision struct {
	ID                   string  `json:"id" yaml:"id"`
	PumpRunTime          string  `json:"pump_run_time" yaml:"pump_run_time"`
	TotalVolume          string  `json:"total_volume" yaml:"total_volume"`
	DischargeRate        string  `json:"discharge_rate" yaml:"discharge_rate"`
	EfficiencyPercentage float64 `json:"efficiency_percentage" yaml:"efficiency_percentage"`

	RuntimeSeconds float64                     `json:"-" yaml:"-"`
	RateM3s        float64                     `json:"-" yaml:"-"`
	Volume         VolumeEstimate              `json:"-" yaml:"-"`
	Moisture       entities.MoistureReading    `json:"-" yaml:"-"`
	Weather        entities.WeatherObservation `json:"-" yaml:"-"`
}

// Options tune a Pipeline. Zero values fall back to defaults.
type Options struct {
	Location       string
	SourceTimeout  time.Duration
	ControlTimeout time.Duration
	ControlPath    string
	Metrics        *Metrics
	Now            func() time.Time
	NewID          func() string
}

// Pipeline runs irrigation decisions. It holds no per-run state, so one
// instance serves concurrent callers; the event log does its own locking.
type Pipeline struct {
	predictor Predictor
	moisture  MoistureSource
	weather   WeatherSource
	control   ControlChannel // nil disables the control write
	events    EventLog
	opts      Options
}

func NewPipeline(predictor Predictor, moisture MoistureSource, weather WeatherSource, control ControlChannel, events EventLog, opts Options) (*Pipeline, error) {
	if predictor == nil {
		return nil, eris.New("pipeline: predictor is required")
	}
	if moisture == nil || weather == nil {
		return nil, eris.New("pipeline: moisture and weather sources are required")
	}
	if events == nil {
		return nil, eris.New("pipeline: event log is required")
	}
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 5 * time.Second
	}
	if opts.ControlTimeout <= 0 {
		opts.ControlTimeout = 3 * time.Second
	}
	if opts.ControlPath == "" {
		opts.ControlPath = messages.RuntimeControlPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Pipeline{
		predictor: predictor,
		moisture:  moisture,
		weather:   weather,
		control:   control,
		events:    events,
		opts:      opts,
	}, nil
}

// run is the state of one decision.
type run struct {
	id     string
	stage  Stage
	trace  Trace
	log    *zap.Logger
	metric *Metrics
}

func (r *run) advance(s Stage) {
	r.log.Debug("pipeline: stage", zap.Stringer("from", r.stage), zap.Stringer("to", s))
	r.stage = s
}

func (r *run) abort(err *Error) (Trace, *Decision, error) {
	r.log.Warn("pipeline: decision aborted",
		zap.Stringer("stage", r.stage),
		zap.String("kind", string(err.Kind)),
		zap.Error(err))
	r.stage = StageAborted
	r.metric.outcome(string(err.Kind))
	return r.trace, nil, err
}

// Run executes one decision. It returns the trace together with either a
// Decision or an *Error, never both.
func (p *Pipeline) Run(ctx context.Context, req DecisionRequest) (Trace, *Decision, error) {
	r := &run{id: p.opts.NewID(), stage: StageStart, metric: p.opts.Metrics}
	r.log = zap.L().With(zap.String("decision_id", r.id))

	in, err := ParseDecisionRequest(req)
	if err != nil {
		var verr *Error
		errors.As(err, &verr)
		r.trace.Fail("Invalid input form data: %s", verr.Message)
		return r.abort(verr)
	}
	r.trace.Ok("Received user input: valve diameter = %s, soil type = %d, area = %s m².",
		num(in.ValveDiameter), int(in.Soil), num(in.FieldAreaM2))

	// sources
	if err := ctx.Err(); err != nil {
		r.trace.Fail("Decision cancelled before fetching sensor data.")
		return r.abort(cancelledError(err))
	}
	pct, err := p.readMoisture(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			r.trace.Fail("Decision cancelled while fetching soil moisture.")
			return r.abort(cancelledError(cerr))
		}
		r.trace.Fail("Error fetching soil moisture: %v", err)
		return r.abort(sourceError("Could not fetch soil moisture.", err))
	}
	reading := entities.NewMoistureReading(pct)
	r.trace.Ok("Fetched live soil moisture: %s%% (%s).", num(pct), reading.Status)

	wx, err := p.readWeather(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			r.trace.Fail("Decision cancelled while fetching weather.")
			return r.abort(cancelledError(cerr))
		}
		r.trace.Fail("Error fetching weather for %s: %v", p.opts.Location, err)
		return r.abort(sourceError("Could not fetch weather forecast.", err))
	}
	r.trace.Ok("Fetched weather for %s: temperature = %s°C, rainfall = %s mm.",
		p.opts.Location, num(wx.TemperatureC), num(wx.RainfallMM))

	// features and prediction
	vec, err := Assemble(in, pct, wx.TemperatureC, wx.RainfallMM)
	if err != nil {
		var verr *Error
		errors.As(err, &verr)
		r.trace.Fail("Feature validation failed: %s", verr.Message)
		return r.abort(verr)
	}
	r.advance(StageFeaturesValidated)
	r.trace.Calc("Created feature array for model: %s", formatVector(vec))

	raw, err := p.predict(vec)
	if err != nil {
		r.trace.Fail("Model prediction failed: %v", err)
		return r.abort(predictionError(err))
	}
	rate, clamped := ClampRate(raw)
	if clamped {
		r.metric.clamped()
		r.log.Warn("pipeline: non-positive prediction clamped", zap.Float64("raw", raw))
		r.trace.Warn("Model predicted a non-positive rate (%s). Clamping to %s m³/s.", num(round2(raw)), num(MinDischargeRate))
	}
	r.advance(StagePredicted)
	r.trace.Calc("Model predicted discharge rate: %s m³/s.", num(rate))

	// volume and runtime
	vol := ComputeVolume(in.Soil, in.FieldAreaM2)
	if !in.Soil.Known() {
		r.trace.Warn("Unknown soil type code %d, using the default %d mm depth.", int(in.Soil), vol.DepthMM)
	}
	r.trace.Calc("%s soil needs %d mm of water over %s m².", in.Soil, vol.DepthMM, num(in.FieldAreaM2))
	r.trace.Calc("Total water volume required: %.2f m³ (baseline %.2f m³).", vol.RequiredM3, vol.BaselineM3)
	r.advance(StageVolumeComputed)

	secs, err := RuntimeSeconds(vol.RequiredM3, rate)
	if err != nil {
		var ierr *Error
		errors.As(err, &ierr)
		r.trace.Fail("Pump time calculation failed: %s", ierr.Message)
		return r.abort(ierr)
	}
	runTime, err := FormatDuration(secs)
	if err != nil {
		var ferr *Error
		errors.As(err, &ferr)
		r.trace.Fail("Pump time formatting failed: %s", ferr.Message)
		return r.abort(ferr)
	}
	r.metric.runtime(secs)
	r.advance(StageRuntimeComputed)
	r.trace.Calc("Calculated pump time: %.2f m³ / %s m³/s = %.2f s (%s).", vol.RequiredM3, num(rate), secs, runTime)

	// best-effort control write
	stored := round2(secs)
	p.writeControl(ctx, r, stored)
	r.advance(StagePersisted)

	// ledger
	if err := ctx.Err(); err != nil {
		r.trace.Fail("Decision cancelled before logging the irrigation event.")
		return r.abort(cancelledError(err))
	}
	event := messages.IrrigationEvent{
		ID:               r.id,
		Timestamp:        p.opts.Now().UTC(),
		SmartVolumeM3:    vol.RequiredM3,
		BaselineVolumeM3: vol.BaselineM3,
	}
	p.events.Append(event)
	r.advance(StageLogged)
	r.trace.Ok("Logged irrigation event: smart %.2f m³ vs baseline %.2f m³.", vol.RequiredM3, vol.BaselineM3)

	d := &Decision{
		ID:                   r.id,
		PumpRunTime:          runTime,
		TotalVolume:          fmt.Sprintf("%.2f", vol.RequiredM3),
		DischargeRate:        num(rate),
		EfficiencyPercentage: vol.EfficiencyPct(),
		RuntimeSeconds:       secs,
		RateM3s:              rate,
		Volume:               vol,
		Moisture:             reading,
		Weather:              wx,
	}
	r.advance(StageDone)
	r.metric.outcome("ok")
	r.log.Info("pipeline: decision complete",
		zap.Float64("rate_m3s", rate),
		zap.Float64("runtime_s", secs),
		zap.Float64("volume_m3", vol.RequiredM3),
		zap.Int("trace_steps", r.trace.Len()))
	return r.trace, d, nil
}

func (p *Pipeline) readMoisture(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SourceTimeout)
	defer cancel()
	pct, err := p.moisture.Read(ctx)
	if err != nil {
		return 0, err
	}
	return pct, nil
}

func (p *Pipeline) readWeather(ctx context.Context) (entities.WeatherObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SourceTimeout)
	defer cancel()
	return p.weather.Current(ctx, p.opts.Location)
}

// predict isolates the model: panics and non-finite outputs become errors.
func (p *Pipeline) predict(v FeatureVector) (out float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("predictor panic: %v", rec)
		}
	}()
	out, err = p.predictor.Predict(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, eris.Errorf("predictor returned non-finite value %v", out)
	}
	return out, nil
}

func (p *Pipeline) writeControl(ctx context.Context, r *run, seconds float64) {
	if p.control == nil {
		r.trace.Ok("Control channel disabled; runtime of %ss not saved.", num(seconds))
		return
	}
	cctx, cancel := context.WithTimeout(WithDecisionID(ctx, r.id), p.opts.ControlTimeout)
	defer cancel()
	if err := p.control.Write(cctx, p.opts.ControlPath, seconds); err != nil {
		r.metric.controlFailed()
		r.log.Warn("pipeline: control write failed",
			zap.String("path", p.opts.ControlPath), zap.Error(err))
		r.trace.Warn("Could not save runtime to %s: %v", p.opts.ControlPath, err)
		return
	}
	r.trace.Ok("Saved runtime (%ss) to %s for device control.", num(seconds), p.opts.ControlPath)
}

type decisionIDKey struct{}

// WithDecisionID tags ctx with the decision a control write belongs to.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, decisionIDKey{}, id)
}

// DecisionIDFrom returns the decision ID set by WithDecisionID, or "".
func DecisionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(decisionIDKey{}).(string)
	return id
}

// num formats a float with the shortest representation that round-trips.
func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatVector(v FeatureVector) string {
	out := "["
	for i, f := range v {
		if i > 0 {
			out += ", "
		}
		out += num(f)
	}
	return out + "]"
}
