// Package analytics keeps the in-process ledger of irrigation events and
// derives the smart-versus-baseline savings report from it.
package analytics

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

// Summary is the raw aggregate over all events, in append order.
type Summary struct {
	TotalSmartM3    float64
	TotalBaselineM3 float64
	TotalSavedM3    float64
	SavingsPct      float64
	Labels          []string
	SmartSeries     []float64
	BaselineSeries  []float64
}

// Observer is notified after each append, outside the ledger lock.
type Observer func(e messages.IrrigationEvent)

// Ledger is the ordered list of events for the process lifetime.
// Appends are exclusive; readers see a consistent snapshot.
type Ledger struct {
	mu        sync.RWMutex
	events    []messages.IrrigationEvent
	observers []Observer
}

func NewLedger(observers ...Observer) *Ledger {
	return &Ledger{observers: observers}
}

// Append records e. It never fails.
func (l *Ledger) Append(e messages.IrrigationEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	n := len(l.events)
	obs := l.observers
	l.mu.Unlock()

	zap.L().Debug("ledger: event appended", zap.String("event_id", e.ID), zap.Int("events", n))
	for _, o := range obs {
		o(e)
	}
}

// Observe registers an observer for subsequent appends.
func (l *Ledger) Observe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of the ledger.
func (l *Ledger) Events() []messages.IrrigationEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]messages.IrrigationEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Aggregate totals the ledger. An empty ledger yields zeros and empty series.
func (l *Ledger) Aggregate() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{
		Labels:         make([]string, 0, len(l.events)),
		SmartSeries:    make([]float64, 0, len(l.events)),
		BaselineSeries: make([]float64, 0, len(l.events)),
	}
	for i, e := range l.events {
		s.TotalSmartM3 += e.SmartVolumeM3
		s.TotalBaselineM3 += e.BaselineVolumeM3
		s.Labels = append(s.Labels, fmt.Sprintf("Event #%d", i+1))
		s.SmartSeries = append(s.SmartSeries, e.SmartVolumeM3)
		s.BaselineSeries = append(s.BaselineSeries, e.BaselineVolumeM3)
	}
	s.TotalSavedM3 = s.TotalBaselineM3 - s.TotalSmartM3
	if s.TotalBaselineM3 > 0 {
		s.SavingsPct = s.TotalSavedM3 / s.TotalBaselineM3 * 100
	}
	return s
}

// Stats is the rounded savings report.
func (l *Ledger) Stats() Stats {
	return NewStats(l.Aggregate())
}
