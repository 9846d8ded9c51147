package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

// Sink persists ledger events outside the process.
type Sink interface {
	Record(ctx context.Context, e messages.IrrigationEvent) error
	Close() error
}

// Journal mirrors ledger appends into a Sink from a single goroutine, so the
// decision path never waits on storage. When the queue is full events are dropped.
type Journal struct {
	sink    Sink
	queue   chan messages.IrrigationEvent
	timeout time.Duration

	mu      sync.RWMutex
	lastErr time.Time
	written int64
	dropped int64
}

func NewJournal(sink Sink, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 256
	}
	return &Journal{
		sink:    sink,
		queue:   make(chan messages.IrrigationEvent, buffer),
		timeout: 5 * time.Second,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
}

// Enqueue is a ledger Observer.
func (j *Journal) Enqueue(e messages.IrrigationEvent) {
	select {
	case j.queue <- e:
	default:
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
		zap.L().Warn("journal: queue full, event dropped", zap.String("event_id", e.ID))
	}
}

// Run writes queued events until ctx is done, then drains what is left and closes the sink.
func (j *Journal) Run(ctx context.Context) error {
	defer func() {
		if err := j.sink.Close(); err != nil {
			zap.L().Warn("journal: close sink", zap.Error(err))
		}
	}()
	for {
		select {
		case e := <-j.queue:
			j.write(context.Background(), e)
		case <-ctx.Done():
			for {
				select {
				case e := <-j.queue:
					j.write(context.Background(), e)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, e messages.IrrigationEvent) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	err := j.sink.Record(ctx, e)

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.lastErr = time.Now()
		zap.L().Warn("journal: write failed", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	j.written++
}

// LastErrorAge is the time since the last failed write; readiness uses it.
func (j *Journal) LastErrorAge() time.Duration {
	if j == nil {
		return 99999 * time.Hour
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return time.Since(j.lastErr)
}

// Counts returns written and dropped totals.
func (j *Journal) Counts() (written, dropped int64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.written, j.dropped
}
