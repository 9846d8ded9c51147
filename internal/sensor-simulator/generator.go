package sensor_simulator

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

const (
	// gainPerMin: +0.6% per minuto quando la valvola è ON (in [0..1]).
	gainPerMin = 0.006

	// defaultSeed: umidità iniziale se non configurata.
	defaultSeed = 0.30

	// jitterStd: rumore di misura della sonda, in punti percentuali.
	jitterStd = 0.2
)

// DataGenerator keeps the simulated soil moisture and advances it over time:
// exponential drying while the valve is off, linear wetting while it is on.
type DataGenerator struct {
	mu       sync.Mutex
	moisture float64 // [0..1]
	halfLife time.Duration
	last     time.Time
	rng      *rand.Rand
	now      func() time.Time
}

// NewDataGenerator starts at seed (fraction 0..1, 0 means default) and halves the
// moisture every halfLife while the valve is closed. rngSeed fixes the probe noise.
func NewDataGenerator(seed float64, halfLife time.Duration, rngSeed uint64) *DataGenerator {
	if seed <= 0 {
		seed = defaultSeed
	}
	return &DataGenerator{
		moisture: clamp01(seed),
		halfLife: halfLife,
		rng:      rand.New(rand.NewPCG(rngSeed, rngSeed)),
		now:      time.Now,
	}
}

// Next advances the model to now under the given valve state and returns a raw reading.
func (g *DataGenerator) Next(fieldID, sensorID string, state entities.SensorState) messages.SensorData {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	if g.last.IsZero() {
		g.last = now
	}
	dt := now.Sub(g.last)
	if dt < 0 {
		dt = 0
	}
	g.last = now

	switch state {
	case entities.StateOn:
		g.moisture = clamp01(g.moisture + gainPerMin*dt.Minutes())
	default:
		if g.halfLife > 0 {
			g.moisture = clamp01(g.moisture * math.Exp(-math.Ln2*dt.Seconds()/g.halfLife.Seconds()))
		}
	}

	pct := g.moisture*100 + g.rng.NormFloat64()*jitterStd
	pct = math.Round(math.Max(0, math.Min(100, pct))*100) / 100
	return messages.SensorData{
		FieldID:   fieldID,
		SensorID:  sensorID,
		Moisture:  pct,
		Timestamp: now,
	}
}

// Moisture returns the current model value as a fraction.
func (g *DataGenerator) Moisture() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moisture
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
