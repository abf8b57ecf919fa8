package memory

import (
	"time"

	"github.com/google/uuid"
)

// Record is a long-term fact about the user, extracted from one of their
// messages. Records are never updated once stored.
type Record struct {
	ID              uuid.UUID `json:"id"`
	ThreadID        string    `json:"thread_id"`
	Content         string    `json:"content"`
	SourceMessageID string    `json:"source_message_id,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SearchRequest is used by the API to search memories with free text.
type SearchRequest struct {
	Query string `json:"query" validate:"required,min=1"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
}

// SearchResult wraps a Record with its cosine similarity to the query.
type SearchResult struct {
	Record     Record  `json:"memory"`
	Similarity float64 `json:"similarity"`
}
