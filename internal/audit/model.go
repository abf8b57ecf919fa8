package audit

import (
	"time"

	"github.com/google/uuid"

	inats "github.com/aiox-platform/companion/internal/nats"
)

// TurnRecord matches the turn_events table schema.
type TurnRecord struct {
	ID         uuid.UUID `json:"id"`
	ThreadID   string    `json:"thread_id"`
	MessageID  string    `json:"message_id"`
	Workflow   string    `json:"workflow"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for turn queries.
type ListParams struct {
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}

// FromEvent converts a bus event into a row. Failed turns that never reached
// a workflow are stored as "none".
func FromEvent(event inats.TurnEvent) *TurnRecord {
	rec := &TurnRecord{
		ID:         uuid.New(),
		ThreadID:   event.ThreadID,
		MessageID:  event.MessageID,
		Workflow:   event.Workflow,
		Status:     event.Status,
		Error:      event.Error,
		DurationMS: event.DurationMS,
		Source:     event.Source,
		CreatedAt:  event.Timestamp,
	}
	if rec.Workflow == "" {
		rec.Workflow = "none"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}
