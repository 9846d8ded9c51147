package messages

import (
	"time"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
)

// StateChangeEvent per cambio di stato della pompa
type StateChangeEvent struct {
	FieldID   string               `json:"field_id,omitempty"`
	Path      string               `json:"path"`
	NewState  entities.SensorState `json:"new_state"`
	Duration  time.Duration        `json:"duration"`
	Timestamp time.Time            `json:"timestamp"`
}
