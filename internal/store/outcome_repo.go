package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutcomeRecord is one audit row per finished contact submission. It holds
// no submitter-provided content.
type OutcomeRecord struct {
	// ID is the submission id.
	ID uuid.UUID
	// FinishedAt is when the response was decided.
	FinishedAt time.Time
	// State is the terminal state, e.g. "delivered".
	State string
	// Class is the failure class, "none" on success.
	Class string
	// Status is the HTTP status sent to the browser.
	Status int
	// ClientIP is the throttling key.
	ClientIP string
	// ProviderID is set when the email provider accepted the message.
	ProviderID *string
	// DurationMs is the pipeline latency.
	DurationMs int64
	// Note carries short diagnostics such as rejection codes.
	Note *string
}

// OutcomeRepository appends submission outcomes.
type OutcomeRepository interface {
	// InsertOutcomes writes records; ids already present are skipped.
	InsertOutcomes(ctx context.Context, records []OutcomeRecord) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
