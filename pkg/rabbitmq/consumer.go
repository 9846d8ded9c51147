package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery on topic.
type MessageHandler func(topic string, message mqtt.Message) error

// IConsumer subscribes a handler to a topic and blocks until the context ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler MessageHandler)
}

// Consumer holds the client and topic for subscribing.
type Consumer struct {
	client  mqtt.Client
	handler MessageHandler
	topic   string
}

var _ IConsumer = (*Consumer)(nil)

// NewConsumer creates a Consumer using the shared MQTT client; handler may be injected later.
func NewConsumer(client mqtt.Client, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler MessageHandler) {
	c.handler = handler
}

// sensor readings and control writes are delivered at-least-once
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/aggregated") ||
		strings.HasPrefix(t, "control/") ||
		strings.HasPrefix(t, "event/StateChange") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to the topic and dispatches deliveries to the handler.
// It blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	token := c.client.Subscribe(
		c.topic,
		qosFor(c.topic),
		func(_ mqtt.Client, message mqtt.Message) {
			if c.handler == nil {
				zap.L().Warn("mqtt: no handler set", zap.String("topic", c.topic))
				return
			}
			if err := c.handler(c.topic, message); err != nil {
				zap.L().Warn("mqtt: handler error", zap.String("topic", message.Topic()), zap.Error(err))
			}
		},
	)
	if token.Wait() && token.Error() != nil {
		return eris.Wrapf(token.Error(), "mqtt: subscribe %s", c.topic)
	}
	zap.L().Info("mqtt: subscribed", zap.String("topic", c.topic))

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
	return nil
}
