package irrigation_controller

import (
	"context"
	"strings"
	"time"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// MQTTControl publishes control values as retained QoS 1 messages, so a device
// that reconnects still sees the last runtime. "/control/x" maps to topic "control/x".
type MQTTControl struct {
	publisher rabbitmq.IPublisher
	prefix    string
	now       func() time.Time
}

var _ ControlChannel = (*MQTTControl)(nil)

func NewMQTTControl(publisher rabbitmq.IPublisher, topicPrefix string) *MQTTControl {
	return &MQTTControl{publisher: publisher, prefix: strings.Trim(topicPrefix, "/"), now: time.Now}
}

// Topic maps a control path onto an MQTT topic.
func (c *MQTTControl) Topic(path string) string {
	p := strings.Trim(path, "/")
	if c.prefix == "" {
		return p
	}
	return c.prefix + "/" + p
}

func (c *MQTTControl) Write(ctx context.Context, path string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := messages.ControlWrite{
		DecisionID: DecisionIDFrom(ctx),
		Path:       path,
		Value:      value,
		Timestamp:  c.now().UTC(),
	}
	done := make(chan error, 1)
	go func() { done <- c.publisher.PublishToQos(c.Topic(path), 1, true, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
