// Package rabbitmqtest provides in-memory MQTT client and message fakes for tests.
package rabbitmqtest

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published records one Publish call.
type Published struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  []byte
}

// Client is a broker-less mqtt.Client. Methods not overridden panic via the nil embedded interface.
type Client struct {
	mqtt.Client

	mu         sync.Mutex
	Connected  bool
	PublishErr error
	published  []Published
	handlers   map[string]mqtt.MessageHandler
}

func NewClient() *Client {
	return &Client{Connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (c *Client) IsConnected() bool      { return c.Connected }
func (c *Client) IsConnectionOpen() bool { return c.Connected }
func (c *Client) Disconnect(uint)        { c.Connected = false }

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return &Token{err: c.PublishErr}
	}
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	default:
		b, _ = json.Marshal(p)
	}
	c.published = append(c.published, Published{Topic: topic, Qos: qos, Retained: retained, Payload: b})
	return &Token{}
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = callback
	return &Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return &Token{}
}

// Subscribed reports whether a handler is registered for the exact filter.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[filter]
	return ok
}

// Deliver hands a message to the handler subscribed on filter.
func (c *Client) Deliver(filter string, msg *Message) bool {
	c.mu.Lock()
	h, ok := c.handlers[filter]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(c, msg)
	return true
}

// Published returns a copy of everything published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.published))
	copy(out, c.published)
	return out
}

// Token is an already-completed mqtt.Token.
type Token struct{ err error }

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *Token) Error() error { return t.err }

// Message is a static mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
	Dup       bool
	Retain    bool
}

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoS }
func (m *Message) Retained() bool    { return m.Retain }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}
