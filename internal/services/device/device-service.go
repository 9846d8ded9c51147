package device

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

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/dedup"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// ErrInvalidValue rejects negative or non-finite control values, and runtimes too
// long to express as a time.Duration.
var ErrInvalidValue = eris.New("device: control value must be finite and non-negative")

// maxRuntimeSeconds is the longest runtime a time.Duration can hold.
const maxRuntimeSeconds = float64(math.MaxInt64 / int64(time.Second))

func checkValue(w messages.ControlWrite) error {
	if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) || w.Value < 0 {
		return ErrInvalidValue
	}
	if w.Path == messages.RuntimeControlPath && w.Value > maxRuntimeSeconds {
		return ErrInvalidValue
	}
	return nil
}

// DeviceService keeps the last value written to each control path and turns
// runtime writes into StateChange ON events for the pump.
type DeviceService struct {
	consumer  rabbitmq.IConsumer // optional control/# subscription
	publisher rabbitmq.IPublisher
	fieldID   string
	topicTmpl string // es. "event/StateChange/{field}"
	deduper   *dedup.Deduper
	now       func() time.Time

	mu     sync.RWMutex
	values map[string]float64
}

func NewDeviceService(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher, fieldID, topicTmpl string) *DeviceService {
	if strings.TrimSpace(topicTmpl) == "" {
		topicTmpl = "event/StateChange/{field}"
	}
	d := &DeviceService{
		consumer:  consumer,
		publisher: publisher,
		fieldID:   fieldID,
		topicTmpl: topicTmpl,
		deduper:   dedup.New(10*time.Minute, 1000),
		now:       time.Now,
		values:    make(map[string]float64),
	}
	if consumer != nil {
		consumer.SetHandler(d.messageHandler)
	}
	return d
}

// Start consumes control messages until ctx is cancelled.
func (d *DeviceService) Start(ctx context.Context) error {
	if d.consumer == nil {
		<-ctx.Done()
		return nil
	}
	return d.consumer.ConsumeMessage(ctx)
}

// Apply stores value at path. A positive runtime switches the pump on for that long.
func (d *DeviceService) Apply(ctx context.Context, w messages.ControlWrite) error {
	if err := checkValue(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.store(w)

	if w.Path != messages.RuntimeControlPath || w.Value == 0 {
		return nil
	}
	evt := messages.StateChangeEvent{
		FieldID:   d.fieldID,
		Path:      w.Path,
		NewState:  entities.StateOn,
		Duration:  time.Duration(w.Value * float64(time.Second)),
		Timestamp: d.now().UTC(),
	}
	topic := strings.NewReplacer("{field}", d.fieldID).Replace(d.topicTmpl)
	if err := d.publisher.PublishToQos(topic, 1, false, evt); err != nil {
		return eris.Wrap(err, "device: publish state ON")
	}
	zap.L().Info("device: pump on", zap.String("field", d.fieldID), zap.Duration("duration", evt.Duration))
	return nil
}

func (d *DeviceService) store(w messages.ControlWrite) {
	d.mu.Lock()
	d.values[w.Path] = w.Value
	d.mu.Unlock()
	zap.L().Info("device: control value stored",
		zap.String("path", w.Path),
		zap.Float64("value", w.Value),
		zap.String("decision_id", w.DecisionID))
}

// Value returns the last value written to path.
func (d *DeviceService) Value(path string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[path]
	return v, ok
}

func (d *DeviceService) messageHandler(topic string, message mqtt.Message) error {
	if !d.deduper.ShouldProcessPayload(message.Payload()) {
		return nil
	}
	var w messages.ControlWrite
	if err := json.Unmarshal(message.Payload(), &w); err != nil {
		return eris.Wrapf(err, "device: invalid control payload on %s", message.Topic())
	}
	if w.Path == "" {
		w.Path = "/" + strings.Trim(message.Topic(), "/")
	}
	// a retained value replayed on subscribe restores state without restarting the pump
	if message.Retained() {
		if err := checkValue(w); err != nil {
			return err
		}
		d.store(w)
		return nil
	}
	return d.Apply(context.Background(), w)
}
