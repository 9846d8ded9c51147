package irrigation_controller

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/dedup"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// ErrNoReading is returned before the first moisture message arrives.
var ErrNoReading = eris.New("moisture: no reading received yet")

// MQTTMoisture caches the newest aggregated moisture reading published on the
// sensor topic and serves it as a MoistureSource.
type MQTTMoisture struct {
	consumer rabbitmq.IConsumer
	fieldID  string
	maxAge   time.Duration
	deduper  *dedup.Deduper
	now      func() time.Time

	mu       sync.RWMutex
	latest   messages.SensorData
	received time.Time
	have     bool
}

var _ MoistureSource = (*MQTTMoisture)(nil)

// NewMQTTMoisture wires the cache as the consumer's handler. Readings from
// other fields are ignored unless fieldID is empty. A maxAge of 0 accepts
// readings of any age.
func NewMQTTMoisture(consumer rabbitmq.IConsumer, fieldID string, maxAge time.Duration) *MQTTMoisture {
	m := &MQTTMoisture{
		consumer: consumer,
		fieldID:  fieldID,
		maxAge:   maxAge,
		deduper:  dedup.New(10*time.Minute, 10000),
		now:      time.Now,
	}
	if consumer != nil {
		consumer.SetHandler(m.HandleMessage)
	}
	return m
}

// Start consumes until ctx is done.
func (m *MQTTMoisture) Start(ctx context.Context) error {
	if m.consumer == nil {
		return eris.New("moisture: no consumer configured")
	}
	return m.consumer.ConsumeMessage(ctx)
}

// HandleMessage stores a SensorData payload if it is newer than the cached one.
func (m *MQTTMoisture) HandleMessage(topic string, msg mqtt.Message) error {
	if !m.deduper.ShouldProcessPayload(msg.Payload()) {
		return nil
	}
	var sd messages.SensorData
	if err := json.Unmarshal(msg.Payload(), &sd); err != nil {
		return eris.Wrapf(err, "moisture: invalid payload on %s", topic)
	}
	if m.fieldID != "" && sd.FieldID != m.fieldID {
		return nil
	}
	if math.IsNaN(sd.Moisture) || sd.Moisture < 0 || sd.Moisture > 100 {
		zap.L().Warn("moisture: reading out of range", zap.String("topic", msg.Topic()), zap.Float64("moisture", sd.Moisture))
		return nil
	}

	now := m.now()
	if sd.Timestamp.IsZero() {
		sd.Timestamp = now
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.have && sd.Timestamp.Before(m.latest.Timestamp) {
		return nil
	}
	m.latest, m.received, m.have = sd, now, true
	zap.L().Debug("moisture: reading cached",
		zap.String("field", sd.FieldID),
		zap.String("sensor", sd.SensorID),
		zap.Float64("moisture", sd.Moisture))
	return nil
}

func (m *MQTTMoisture) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.have {
		return 0, ErrNoReading
	}
	if m.maxAge > 0 {
		if age := m.now().Sub(m.latest.Timestamp); age > m.maxAge {
			return 0, eris.Errorf("moisture: latest reading is stale (%s old)", age.Round(time.Second))
		}
	}
	return m.latest.Moisture, nil
}

// Latest returns the cached reading, if any.
func (m *MQTTMoisture) Latest() (messages.SensorData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.have
}
