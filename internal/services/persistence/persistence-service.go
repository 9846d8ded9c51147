package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/dedup"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// Service mirrors aggregated moisture readings into Influx, where the
// Influx-backed moisture source reads them, and keeps the newest reading per sensor.
type Service struct {
	consumer    rabbitmq.IConsumer
	writeAPI    api.WriteAPIBlocking
	measurement string
	deduper     *dedup.Deduper

	mu     sync.RWMutex
	latest map[string]messages.SensorData // key is SensorID
}

func NewService(consumer rabbitmq.IConsumer, writeAPI api.WriteAPIBlocking, measurement string) *Service {
	if strings.TrimSpace(measurement) == "" {
		measurement = "soil_moisture"
	}
	s := &Service{
		consumer:    consumer,
		writeAPI:    writeAPI,
		measurement: sanitizeMeasurement(measurement),
		deduper:     dedup.New(10*time.Minute, 10000),
		latest:      make(map[string]messages.SensorData),
	}
	if consumer != nil {
		consumer.SetHandler(s.messageHandler)
	}
	return s
}

// Start consumes until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.consumer == nil {
		return eris.New("persistence: no consumer configured")
	}
	return s.consumer.ConsumeMessage(ctx)
}

// Point converts a reading into the point the moisture source queries.
func (s *Service) Point(m messages.SensorData) *write.Point {
	tags := map[string]string{
		"field_id":  m.FieldID,
		"sensor_id": m.SensorID,
	}
	fields := map[string]interface{}{
		"moisture":   m.Moisture,
		"aggregated": m.Aggregated,
	}
	return influxdb2.NewPoint(s.measurement, tags, fields, m.Timestamp)
}

// Store writes one reading and updates the cache. The cache is updated even
// when the write fails so the HTTP view stays current.
func (s *Service) Store(ctx context.Context, m messages.SensorData) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	if prev, ok := s.latest[m.SensorID]; !ok || !m.Timestamp.Before(prev.Timestamp) {
		s.latest[m.SensorID] = m
	}
	s.mu.Unlock()

	if err := s.writeAPI.WritePoint(ctx, s.Point(m)); err != nil {
		return eris.Wrapf(err, "persistence: write %s/%s", m.FieldID, m.SensorID)
	}
	zap.L().Debug("persistence: wrote",
		zap.String("measurement", s.measurement),
		zap.String("field", m.FieldID),
		zap.String("sensor", m.SensorID),
		zap.Float64("moisture", m.Moisture))
	return nil
}

// Latest returns the cached readings ordered by sensor ID.
func (s *Service) Latest() []messages.SensorData {
	s.mu.RLock()
	out := make([]messages.SensorData, 0, len(s.latest))
	for _, v := range s.latest {
		out = append(out, v)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

func (s *Service) messageHandler(topic string, msg mqtt.Message) error {
	if !s.deduper.ShouldProcessPayload(msg.Payload()) {
		return nil
	}
	var m messages.SensorData
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		// non bloccare lo stream
		zap.L().Warn("persistence: invalid JSON", zap.String("topic", msg.Topic()), zap.Error(err))
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Store(ctx, m)
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
