package persistence

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq/rabbitmqtest"
)

type influxStub struct {
	mu     sync.Mutex
	lines  []string
	status int
}

func newInfluxStub(t *testing.T) (*influxStub, *httptest.Server) {
	stub := &influxStub{status: http.StatusNoContent}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.lines = append(stub.lines, string(b))
		status := stub.status
		stub.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func newTestService(t *testing.T, srv *httptest.Server, consumer rabbitmq.IConsumer) *Service {
	client := influxdb2.NewClient(srv.URL, "token")
	t.Cleanup(client.Close)
	return NewService(consumer, client.WriteAPIBlocking("sdcc", "agri"), "soil moisture")
}

func reading(sensor string, moisture float64, ts int64) messages.SensorData {
	return messages.SensorData{FieldID: "field1", SensorID: sensor, Moisture: moisture, Aggregated: true, Timestamp: time.Unix(ts, 0).UTC()}
}

func TestStore_WritesPointAndCaches(t *testing.T) {
	stub, srv := newInfluxStub(t)
	svc := newTestService(t, srv, nil)

	require.NoError(t, svc.Store(context.Background(), reading("s2", 41.5, 20)))
	require.NoError(t, svc.Store(context.Background(), reading("s1", 30, 20)))
	require.NoError(t, svc.Store(context.Background(), reading("s1", 10, 5))) // older, cache keeps ts 20

	require.Len(t, stub.lines, 3)
	assert.Contains(t, stub.lines[0], "soil_moisture,field_id=field1,sensor_id=s2")
	assert.Contains(t, stub.lines[0], "moisture=41.5")

	latest := svc.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, "s1", latest[0].SensorID)
	assert.Equal(t, 30.0, latest[0].Moisture)
}

func TestStore_WriteFailureStillCaches(t *testing.T) {
	stub, srv := newInfluxStub(t)
	stub.status = http.StatusInternalServerError
	svc := newTestService(t, srv, nil)

	assert.Error(t, svc.Store(context.Background(), reading("s1", 30, 1)))
	assert.Len(t, svc.Latest(), 1)
}

func TestConsume_AggregatedTopic(t *testing.T) {
	stub, srv := newInfluxStub(t)
	client := rabbitmqtest.NewClient()
	svc := newTestService(t, srv, rabbitmq.NewConsumer(client, "sensor/aggregated/#", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Start(ctx) }()
	require.Eventually(t, func() bool { return client.Subscribed("sensor/aggregated/#") }, time.Second, 5*time.Millisecond)

	b, _ := json.Marshal(reading("s1", 44, 1))
	msg := &rabbitmqtest.Message{TopicName: "sensor/aggregated/field1/s1", Body: b}
	client.Deliver("sensor/aggregated/#", msg)
	client.Deliver("sensor/aggregated/#", msg)
	client.Deliver("sensor/aggregated/#", &rabbitmqtest.Message{TopicName: "sensor/aggregated/field1/s1", Body: []byte("bad")})

	stub.mu.Lock()
	assert.Len(t, stub.lines, 1)
	stub.mu.Unlock()
}

func TestRouter(t *testing.T) {
	_, srv := newInfluxStub(t)
	svc := newTestService(t, srv, nil)
	require.NoError(t, svc.Store(context.Background(), reading("s1", 30, 0)))
	other := reading("s9", 70, 0)
	other.FieldID = "field2"
	require.NoError(t, svc.Store(context.Background(), other))

	h := NewRouter(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/latest?field=field1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"field_id":"field1","sensor_id":"s1","moisture":30,"aggregated":true,"timestamp":"1970-01-01T00:00:00Z"}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
