package sensor_simulator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/dedup"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// RawTopic is where a probe publishes unaggregated readings.
func RawTopic(fieldID, sensorID string) string {
	return "sensor/data/" + fieldID + "/" + sensorID
}

// SensorSimulator publishes readings for one soil probe and follows the pump
// state announced on the field's StateChange topic.
type SensorSimulator struct {
	fieldID   string
	sensorID  string
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	consumer  rabbitmq.IConsumer // event/StateChange/{field}
	deduper   *dedup.Deduper

	mu    sync.Mutex
	state entities.SensorState
	timer *time.Timer // single timer
}

func NewSensorSimulator(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher,
	gen *DataGenerator, fieldID, sensorID string) *SensorSimulator {
	s := &SensorSimulator{
		fieldID:   fieldID,
		sensorID:  sensorID,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000),
		state:     entities.StateOff,
	}
	if consumer != nil {
		consumer.SetHandler(s.handleMessage)
	}
	return s
}

// Start publishes a reading every interval until ctx is cancelled.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	if s.consumer != nil {
		go func() {
			if err := s.consumer.ConsumeMessage(ctx); err != nil {
				zap.L().Error("sensor: state consumer stopped", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			return
		case <-ticker.C:
			if err := s.Publish(); err != nil {
				zap.L().Warn("sensor: publish failed", zap.String("sensor", s.sensorID), zap.Error(err))
			}
		}
	}
}

// Publish samples the generator once and sends the reading.
func (s *SensorSimulator) Publish() error {
	sd := s.generator.Next(s.fieldID, s.sensorID, s.State())
	if err := s.publisher.PublishToQos(RawTopic(s.fieldID, s.sensorID), 0, false, sd); err != nil {
		return eris.Wrap(err, "sensor: publish raw reading")
	}
	zap.L().Debug("sensor: pub raw",
		zap.String("field", sd.FieldID),
		zap.String("sensor", sd.SensorID),
		zap.Float64("moisture", sd.Moisture))
	return nil
}

// State is the valve state the probe currently observes.
func (s *SensorSimulator) State() entities.SensorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SensorSimulator) handleMessage(_ string, msg mqtt.Message) error {
	if !s.deduper.ShouldProcessPayload(msg.Payload()) {
		return nil
	}
	var evt messages.StateChangeEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		return eris.Wrapf(err, "sensor: invalid StateChangeEvent on %s", msg.Topic())
	}
	if evt.FieldID != "" && !strings.EqualFold(evt.FieldID, s.fieldID) {
		return nil
	}
	s.applyTimedState(evt)
	return nil
}

// applyTimedState switches the valve and schedules the revert to OFF after evt.Duration.
func (s *SensorSimulator) applyTimedState(evt messages.StateChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = evt.NewState
	zap.L().Info("sensor: valve state",
		zap.String("sensor", s.sensorID),
		zap.String("state", string(evt.NewState)),
		zap.Duration("duration", evt.Duration))

	if evt.NewState == entities.StateOn && evt.Duration > 0 {
		s.timer = time.AfterFunc(evt.Duration, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.state = entities.StateOff
			s.timer = nil
			zap.L().Info("sensor: valve closed", zap.String("sensor", s.sensorID))
		})
	}
}

func (s *SensorSimulator) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
