package analytics

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

const schema = `CREATE TABLE IF NOT EXISTS irrigation_events (
	id TEXT PRIMARY KEY,
	ts TEXT NOT NULL,
	smart_volume_m3 REAL NOT NULL,
	baseline_volume_m3 REAL NOT NULL
)`

// SQLiteSink stores events in a local sqlite file.
type SQLiteSink struct {
	db *sql.DB
}

var _ Sink = (*SQLiteSink)(nil)

// OpenSQLiteSink opens (or creates) the database at path. ":memory:" works for tests.
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "journal: open sqlite %s", path)
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "journal: create schema")
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Record(ctx context.Context, e messages.IrrigationEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO irrigation_events (id, ts, smart_volume_m3, baseline_volume_m3) VALUES (?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.SmartVolumeM3, e.BaselineVolumeM3)
	if err != nil {
		return eris.Wrapf(err, "journal: insert %s", e.ID)
	}
	return nil
}

// Events reads the journal back in timestamp order.
func (s *SQLiteSink) Events(ctx context.Context) ([]messages.IrrigationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, smart_volume_m3, baseline_volume_m3 FROM irrigation_events ORDER BY ts, rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "journal: query events")
	}
	defer rows.Close()

	var out []messages.IrrigationEvent
	for rows.Next() {
		var (
			e  messages.IrrigationEvent
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.SmartVolumeM3, &e.BaselineVolumeM3); err != nil {
			return nil, eris.Wrap(err, "journal: scan event")
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, eris.Wrapf(err, "journal: bad timestamp on %s", e.ID)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate events")
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
