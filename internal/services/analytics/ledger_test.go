package analytics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

func event(id string, smart, baseline float64) messages.IrrigationEvent {
	return messages.IrrigationEvent{
		ID:               id,
		Timestamp:        time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC),
		SmartVolumeM3:    smart,
		BaselineVolumeM3: baseline,
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := NewLedger().Aggregate()
	assert.Zero(t, s.TotalSmartM3)
	assert.Zero(t, s.TotalBaselineM3)
	assert.Zero(t, s.TotalSavedM3)
	assert.Zero(t, s.SavingsPct)
	assert.NotNil(t, s.Labels)
	assert.Empty(t, s.Labels)
	assert.Empty(t, s.SmartSeries)
	assert.Empty(t, s.BaselineSeries)
}

func TestAggregate_TotalsAndLabels(t *testing.T) {
	l := NewLedger()
	l.Append(event("a", 2, 3))
	l.Append(event("b", 1.5, 2.25))

	s := l.Aggregate()
	assert.Equal(t, []string{"Event #1", "Event #2"}, s.Labels)
	assert.Equal(t, []float64{2, 1.5}, s.SmartSeries)
	assert.Equal(t, []float64{3, 2.25}, s.BaselineSeries)
	assert.InDelta(t, 3.5, s.TotalSmartM3, 1e-9)
	assert.InDelta(t, 5.25, s.TotalBaselineM3, 1e-9)
	assert.InDelta(t, 1.75, s.TotalSavedM3, 1e-9)
	assert.InDelta(t, 33.333, s.SavingsPct, 1e-3)
}

func TestAggregate_ZeroBaseline(t *testing.T) {
	l := NewLedger()
	l.Append(event("a", 0, 0))
	s := l.Aggregate()
	assert.Zero(t, s.SavingsPct)
	assert.Len(t, s.Labels, 1)
}

func TestStats_Rounding(t *testing.T) {
	l := NewLedger()
	l.Append(event("a", 1.23456, 1.85184))
	l.Append(event("b", 0.3333, 0.5))

	st := l.Stats()
	assert.Equal(t, 0.78, st.TotalWaterSaved)
	assert.Equal(t, 33.3, st.SavingsPercentage)
	assert.Equal(t, []float64{1.23, 0.33}, st.ChartData.SmartUsage)
	assert.Equal(t, []float64{1.85, 0.5}, st.ChartData.BaselineUsage)
	assert.Equal(t, []string{"Event #1", "Event #2"}, st.ChartData.Labels)
}

func TestStats_RoundsHalfToEven(t *testing.T) {
	l := NewLedger()
	l.Append(event("a", 0.5, 0.625))

	st := l.Stats()
	assert.Equal(t, 0.12, st.TotalWaterSaved)
	assert.Equal(t, 20.0, st.SavingsPercentage)
	assert.Equal(t, []float64{0.62}, st.ChartData.BaselineUsage)
}

func TestStats_EmptyEncodesArrays(t *testing.T) {
	st := NewLedger().Stats()
	assert.NotNil(t, st.ChartData.Labels)
	assert.NotNil(t, st.ChartData.SmartUsage)
	assert.NotNil(t, st.ChartData.BaselineUsage)
}

func TestLedger_ConcurrentAppendsAreNotLost(t *testing.T) {
	l := NewLedger()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(event(fmt.Sprint(i), 1, 1.5))
			_ = l.Aggregate()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, l.Len())
	s := l.Aggregate()
	assert.Len(t, s.Labels, n)
	assert.InDelta(t, float64(n), s.TotalSmartM3, 1e-9)
}

func TestLedger_ObserversAndEventsCopy(t *testing.T) {
	var seen []string
	l := NewLedger(func(e messages.IrrigationEvent) { seen = append(seen, e.ID) })
	l.Observe(func(e messages.IrrigationEvent) { seen = append(seen, "2:"+e.ID) })

	l.Append(event("x", 1, 1.5))
	assert.Equal(t, []string{"x", "2:x"}, seen)

	evs := l.Events()
	require.Len(t, evs, 1)
	evs[0].ID = "mutated"
	assert.Equal(t, "x", l.Events()[0].ID)
}
