package rabbitmq

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IPublisher publishes payloads to MQTT topics.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishToQos(topic string, qos byte, retained bool, message interface{}) error
	Close()
}

// Publisher holds the client and its default topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

var _ IPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher using the shared MQTT client and a default topic.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// PublishMessage publishes to the default topic at QoS 0.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishToQos(p.topic, 0, false, message)
}

// PublishToQos publishes message on topic. Strings and byte slices are sent as-is,
// anything else is JSON encoded.
func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, message interface{}) error {
	payload, err := encodePayload(message)
	if err != nil {
		return err
	}

	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return eris.Wrapf(token.Error(), "mqtt: publish to %s", topic)
	}

	zap.L().Debug("mqtt: published", zap.String("topic", topic), zap.Uint8("qos", qos), zap.Bool("retained", retained))
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client)
}

func encodePayload(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return nil, eris.Wrap(err, "mqtt: encode payload")
		}
		return b, nil
	}
}
