package analytics

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotisserie/eris"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

// EventMeasurement is the Influx measurement ledger events are written to.
const EventMeasurement = "irrigation_event"

// EventPoint converts an event into an Influx point.
func EventPoint(e messages.IrrigationEvent) *write.Point {
	tags := map[string]string{"event_id": e.ID}
	fields := map[string]interface{}{
		"smart_volume_m3":    e.SmartVolumeM3,
		"baseline_volume_m3": e.BaselineVolumeM3,
		"saved_m3":           e.BaselineVolumeM3 - e.SmartVolumeM3,
	}
	return influxdb2.NewPoint(EventMeasurement, tags, fields, e.Timestamp)
}

// InfluxSink writes events with the blocking write API.
type InfluxSink struct {
	writer  api.WriteAPIBlocking
	closeFn func()
}

var _ Sink = (*InfluxSink)(nil)

// NewInfluxSink writes through w; closeFn, if set, runs on Close.
func NewInfluxSink(w api.WriteAPIBlocking, closeFn func()) *InfluxSink {
	return &InfluxSink{writer: w, closeFn: closeFn}
}

func (s *InfluxSink) Record(ctx context.Context, e messages.IrrigationEvent) error {
	if err := s.writer.WritePoint(ctx, EventPoint(e)); err != nil {
		return eris.Wrapf(err, "journal: influx write %s", e.ID)
	}
	return nil
}

func (s *InfluxSink) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
