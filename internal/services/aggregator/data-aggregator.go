package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/dedup"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// AggregatedTopic is where window averages are published for the moisture sources.
func AggregatedTopic(fieldID, sensorID string) string {
	return "sensor/aggregated/" + fieldID + "/" + sensorID
}

// DataAggregatorService buffers raw probe readings per sensor and publishes
// one averaged reading per sensor each window.
type DataAggregatorService struct {
	consumer  rabbitmq.IConsumer
	publisher rabbitmq.IPublisher
	deduper   *dedup.Deduper
	now       func() time.Time

	mutex  sync.Mutex
	buffer map[string][]messages.SensorData // key is SensorID
}

func NewDataAggregatorService(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher) *DataAggregatorService {
	d := &DataAggregatorService{
		consumer:  consumer,
		publisher: publisher,
		deduper:   dedup.New(10*time.Minute, 10000),
		now:       time.Now,
		buffer:    make(map[string][]messages.SensorData),
	}
	if consumer != nil {
		consumer.SetHandler(d.messageHandler)
	}
	return d
}

func (d *DataAggregatorService) messageHandler(_ string, message mqtt.Message) error {
	if !d.deduper.ShouldProcessPayload(message.Payload()) {
		return nil
	}
	var sd messages.SensorData
	if err := json.Unmarshal(message.Payload(), &sd); err != nil {
		return eris.Wrapf(err, "aggregator: invalid sensor data on %s", message.Topic())
	}
	if sd.Aggregated || strings.TrimSpace(sd.SensorID) == "" {
		return nil
	}
	if math.IsNaN(sd.Moisture) || sd.Moisture < 0 || sd.Moisture > 100 {
		zap.L().Warn("aggregator: reading out of range", zap.String("sensor", sd.SensorID), zap.Float64("moisture", sd.Moisture))
		return nil
	}

	d.mutex.Lock()
	d.buffer[sd.SensorID] = append(d.buffer[sd.SensorID], sd)
	d.mutex.Unlock()
	return nil
}

// Start consumes raw readings and flushes every interval until ctx is cancelled.
// Whatever is buffered at shutdown is flushed once more.
func (d *DataAggregatorService) Start(ctx context.Context, interval time.Duration) error {
	if d.consumer == nil {
		return eris.New("aggregator: no consumer configured")
	}
	errCh := make(chan error, 1)
	go func() { errCh <- d.consumer.ConsumeMessage(ctx) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Flush()
			return <-errCh
		case err := <-errCh:
			return err
		case <-ticker.C:
			d.Flush()
		}
	}
}

// Flush publishes the mean of each sensor's buffered readings and resets the buffers.
// It returns the number of aggregates published.
func (d *DataAggregatorService) Flush() int {
	d.mutex.Lock()
	pending := d.buffer
	d.buffer = make(map[string][]messages.SensorData, len(pending))
	d.mutex.Unlock()

	published := 0
	for sensorID, readings := range pending {
		if len(readings) == 0 {
			continue
		}
		values := make([]float64, len(readings))
		for i, r := range readings {
			values[i] = r.Moisture
		}
		out := messages.SensorData{
			FieldID:    readings[0].FieldID,
			SensorID:   sensorID,
			Moisture:   math.Round(stat.Mean(values, nil)*100) / 100,
			Aggregated: true,
			Timestamp:  d.now().UTC(),
		}
		if err := d.publisher.PublishToQos(AggregatedTopic(out.FieldID, sensorID), 1, false, out); err != nil {
			zap.L().Warn("aggregator: publish failed", zap.String("sensor", sensorID), zap.Error(err))
			continue
		}
		published++
		zap.L().Info("aggregator: published",
			zap.String("field", out.FieldID),
			zap.String("sensor", sensorID),
			zap.Int("samples", len(readings)),
			zap.Float64("moisture", out.Moisture))
	}
	return published
}
