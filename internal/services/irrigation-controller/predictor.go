package irrigation_controller

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinDischargeRate is the floor applied to non-positive predictions, in m³/s.
const MinDischargeRate = 0.1

// Predictor maps a feature vector to a discharge rate in m³/s.
type Predictor interface {
	Predict(v FeatureVector) (float64, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(v FeatureVector) (float64, error)

func (f PredictorFunc) Predict(v FeatureVector) (float64, error) { return f(v) }

// FixedRate always predicts the same rate.
type FixedRate float64

func (r FixedRate) Predict(FeatureVector) (float64, error) { return float64(r), nil }

// ModelConfig describes the synthetic training set and the forest grown on it.
type ModelConfig struct {
	Seed       uint64
	Samples    int
	Estimators int
	NoiseStd   float64
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{Seed: 42, Samples: 100, Estimators: 100, NoiseStd: 15}
}

// TrainingSet holds rows in FeatureVector order and their discharge targets.
type TrainingSet struct {
	X [][]float64
	Y []float64
}

// GenerateTrainingSet draws the synthetic discharge dataset. Columns are drawn in
// feature order for all samples before the noise term, so a seed fixes the set.
func GenerateTrainingSet(cfg ModelConfig) TrainingSet {
	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	n := cfg.Samples

	draw := func(min, max float64) []float64 {
		u := distuv.Uniform{Min: min, Max: max, Src: src}
		out := make([]float64, n)
		for i := range out {
			out[i] = u.Rand()
		}
		return out
	}
	rainfall := draw(5, 50)
	temperature := draw(5, 30)
	moisture := draw(10, 80)
	valve := draw(2, 12)

	rng := rand.New(src)
	soil := make([]float64, n)
	for i := range soil {
		soil[i] = float64(rng.IntN(3) + 1)
	}

	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseStd, Src: src}
	set := TrainingSet{X: make([][]float64, n), Y: make([]float64, n)}
	for i := 0; i < n; i++ {
		var row FeatureVector
		row[FeatureRainfall] = rainfall[i]
		row[FeatureTemperature] = temperature[i]
		row[FeatureMoisture] = moisture[i]
		row[FeatureValveDiameter] = valve[i]
		row[FeatureSoilType] = soil[i]
		set.X[i] = row[:]
		set.Y[i] = 2.5*rainfall[i] + 0.5*temperature[i] + 1.8*moisture[i] + 10*valve[i] - 5*soil[i] + noise.Rand()
	}
	return set
}

// ForestPredictor serves predictions from a trained forest.
type ForestPredictor struct {
	forest *Forest
	r2     float64
}

// TrainDischargeModel generates the training set and fits the forest on it.
func TrainDischargeModel(cfg ModelConfig) (*ForestPredictor, error) {
	if cfg.Samples <= 1 {
		return nil, eris.Errorf("model: need at least 2 samples, got %d", cfg.Samples)
	}
	set := GenerateTrainingSet(cfg)
	forest, err := FitForest(set.X, set.Y, ForestConfig{Estimators: cfg.Estimators, Seed: cfg.Seed})
	if err != nil {
		return nil, eris.Wrap(err, "model: fit forest")
	}

	fitted := make([]float64, len(set.Y))
	for i, row := range set.X {
		fitted[i], _ = forest.Predict(row)
	}
	p := &ForestPredictor{forest: forest, r2: stat.RSquaredFrom(fitted, set.Y, nil)}
	zap.L().Info("model: discharge forest trained",
		zap.Uint64("seed", cfg.Seed),
		zap.Int("samples", cfg.Samples),
		zap.Int("trees", forest.Size()),
		zap.Float64("train_r2", p.r2))
	return p, nil
}

func (p *ForestPredictor) Predict(v FeatureVector) (float64, error) {
	out, err := p.forest.Predict(v.Slice())
	if err != nil {
		return 0, err
	}
	return out, nil
}

// TrainingR2 is the coefficient of determination on the training set.
func (p *ForestPredictor) TrainingR2() float64 { return p.r2 }

// ClampRate rounds a raw prediction to 2 decimals and floors non-positive
// values at MinDischargeRate. clamped reports whether the floor was applied.
func ClampRate(raw float64) (rate float64, clamped bool) {
	rate = round2(raw)
	if rate <= 0 {
		return MinDischargeRate, true
	}
	return rate, false
}

// round2 rounds half to even, like numpy's round.
func round2(v float64) float64 { return math.RoundToEven(v*100) / 100 }
