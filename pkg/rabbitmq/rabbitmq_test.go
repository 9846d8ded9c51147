package rabbitmq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq/rabbitmqtest"
)

func TestPublishToQos_EncodesPayloads(t *testing.T) {
	client := rabbitmqtest.NewClient()
	p := NewPublisher(client, "sensor/data")

	require.NoError(t, p.PublishMessage("raw"))
	require.NoError(t, p.PublishToQos("control/pump_runtime_seconds", 1, true, map[string]float64{"value": 0.05}))

	got := client.Published()
	require.Len(t, got, 2)
	assert.Equal(t, "sensor/data", got[0].Topic)
	assert.Equal(t, byte(0), got[0].Qos)
	assert.Equal(t, []byte("raw"), got[0].Payload)

	assert.Equal(t, "control/pump_runtime_seconds", got[1].Topic)
	assert.Equal(t, byte(1), got[1].Qos)
	assert.True(t, got[1].Retained)
	assert.JSONEq(t, `{"value":0.05}`, string(got[1].Payload))
}

func TestPublishToQos_PropagatesBrokerError(t *testing.T) {
	client := rabbitmqtest.NewClient()
	client.PublishErr = errors.New("not connected")
	p := NewPublisher(client, "x")

	err := p.PublishMessage("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestConsumer_DispatchesUntilCancelled(t *testing.T) {
	client := rabbitmqtest.NewClient()
	var calls atomic.Int32
	c := NewConsumer(client, "sensor/aggregated/#", nil)
	c.SetHandler(func(_ string, _ mqtt.Message) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.ConsumeMessage(ctx) }()

	require.Eventually(t, func() bool { return client.Subscribed("sensor/aggregated/#") }, time.Second, 5*time.Millisecond)
	client.Deliver("sensor/aggregated/#", &rabbitmqtest.Message{TopicName: "sensor/aggregated/f1/s1", Body: []byte(`{}`)})
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, client.Subscribed("sensor/aggregated/#"))
}

func TestQosFor(t *testing.T) {
	assert.Equal(t, byte(1), qosFor("sensor/aggregated/#"))
	assert.Equal(t, byte(1), qosFor("control/pump_runtime_seconds"))
	assert.Equal(t, byte(0), qosFor("sensor/data"))
}
