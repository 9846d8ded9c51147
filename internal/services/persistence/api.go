package persistence

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type latestItem struct {
	FieldID    string  `json:"field_id"`
	SensorID   string  `json:"sensor_id"`
	Moisture   float64 `json:"moisture"`
	Aggregated bool    `json:"aggregated"`
	Timestamp  string  `json:"timestamp"`
}

// NewRouter exposes the cached readings and a liveness probe.
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /data/latest[?field=<id>]
	r.Get("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		field := r.URL.Query().Get("field")
		out := make([]latestItem, 0)
		for _, v := range svc.Latest() {
			if field != "" && v.FieldID != field {
				continue
			}
			out = append(out, latestItem{
				FieldID: v.FieldID, SensorID: v.SensorID, Moisture: v.Moisture,
				Aggregated: v.Aggregated, Timestamp: v.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return r
}
