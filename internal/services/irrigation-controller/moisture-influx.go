package irrigation_controller

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rotisserie/eris"
)

// FluxQuerier is the subset of api.QueryAPI used here.
type FluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// InfluxMoisture reads the latest soil moisture point written by the sensor pipeline.
type InfluxMoisture struct {
	query       FluxQuerier
	bucket      string
	measurement string
	fieldID     string
	lookback    time.Duration
}

var _ MoistureSource = (*InfluxMoisture)(nil)

// NewInfluxMoisture builds a source over q. fieldID may be empty to take the
// newest point of any field.
func NewInfluxMoisture(q FluxQuerier, bucket, measurement, fieldID string, lookback time.Duration) *InfluxMoisture {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &InfluxMoisture{query: q, bucket: bucket, measurement: measurement, fieldID: fieldID, lookback: lookback}
}

// Flux returns the query that selects the newest moisture value.
func (s *InfluxMoisture) Flux() string {
	filter := fmt.Sprintf(`r._measurement == %q and r._field == "moisture"`, s.measurement)
	if s.fieldID != "" {
		filter += fmt.Sprintf(` and r.field_id == %q`, s.fieldID)
	}
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => %s)
  |> group()
  |> sort(columns: ["_time"])
  |> last()`, s.bucket, int(s.lookback.Minutes()), filter)
}

func (s *InfluxMoisture) Read(ctx context.Context) (float64, error) {
	res, err := s.query.Query(ctx, s.Flux())
	if err != nil {
		return 0, eris.Wrap(err, "influx: query moisture")
	}
	defer res.Close()

	var (
		value float64
		found bool
	)
	for res.Next() {
		switch v := res.Record().Value().(type) {
		case float64:
			value, found = v, true
		case int64:
			value, found = float64(v), true
		case uint64:
			value, found = float64(v), true
		}
	}
	if err := res.Err(); err != nil {
		return 0, eris.Wrap(err, "influx: read moisture")
	}
	if !found {
		return 0, eris.Errorf("influx: no %s points in the last %s", s.measurement, s.lookback)
	}
	return value, nil
}
