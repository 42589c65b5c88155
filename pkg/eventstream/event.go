package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted once a relayed turn has ended,
	// whatever the outcome.
	EventTypeTurnCompleted = "yurie.turn.completed"
)

// Turn outcomes.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusAborted   = "aborted"
)

// TurnEvent is a transport-neutral summary of one relayed turn. It carries
// counters only, never message content.
type TurnEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Route         string    `json:"route"`
	Model         string    `json:"model,omitempty"`
	Status        string    `json:"status"`
	Deltas        int       `json:"deltas"`
	Bytes         int64     `json:"bytes"`
	Images        int       `json:"images"`
	DurationMs    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

// NewTurnEvent stamps a TurnEvent for route with a fresh id.
func NewTurnEvent(route, model string, startedAt time.Time) *TurnEvent {
	now := time.Now().UTC()
	return &TurnEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Route:         route,
		Model:         model,
		Status:        StatusCompleted,
		DurationMs:    now.Sub(startedAt).Milliseconds(),
	}
}
