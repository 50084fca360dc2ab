package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event describes how one submission ended. It deliberately has no field for
// the submitter's name, address or message.
type Event struct {
	// ID is the submission id (UUIDv7 bytes).
	ID [16]byte
	// TS is when the submission finished, UTC.
	TS time.Time
	// State is the terminal pipeline state, e.g. "delivered".
	State string
	// Class is the failure class, "none" on success.
	Class string
	// Status is the HTTP status returned to the browser.
	Status int
	// ClientIP is the throttling key; it may be "unknown".
	ClientIP string
	// ProviderID is the email provider's message id when delivered.
	ProviderID string
	// Dur is the time spent inside the pipeline.
	Dur time.Duration
	// Note holds short diagnostics such as rejection codes.
	Note string
}

// Validate rejects events a sink could not store.
func (e Event) Validate() error {
	if e.ID == [16]byte{} {
		return errors.New("event id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.State == "" {
		return errors.New("state is required")
	}
	if e.Status < 100 || e.Status > 599 {
		return fmt.Errorf("status %d out of range", e.Status)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// UUID returns the id as uuid.UUID.
func (e Event) UUID() uuid.UUID {
	return uuid.UUID(e.ID)
}
