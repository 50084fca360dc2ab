package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/consulting-site/internal/events"
)

// Hasher digests an identifier.
type Hasher interface {
	Hash(data []byte) (string, error)
}

const unknownIP = "unknown"

// PseudonymizingSink replaces client IPs with a digest before handing the
// batch to the wrapped sink. The caller's batch is not modified.
type PseudonymizingSink struct {
	next   events.Sink
	hasher Hasher
}

// Pseudonymize wraps next.
func Pseudonymize(next events.Sink, hasher Hasher) *PseudonymizingSink {
	return &PseudonymizingSink{next: next, hasher: hasher}
}

// Consume hashes ClientIP on a copy of batch and forwards it.
func (s *PseudonymizingSink) Consume(ctx context.Context, batch []events.Event) error {
	out := make([]events.Event, len(batch))
	for i, evt := range batch {
		if evt.ClientIP != "" && evt.ClientIP != unknownIP {
			digest, err := s.hasher.Hash([]byte(evt.ClientIP))
			if err != nil {
				return fmt.Errorf("pseudonymize client ip: %w", err)
			}
			evt.ClientIP = digest
		}
		out[i] = evt
	}
	return s.next.Consume(ctx, out) //nolint:wrapcheck
}

// Close closes the wrapped sink.
func (s *PseudonymizingSink) Close(ctx context.Context) error {
	return s.next.Close(ctx) //nolint:wrapcheck
}
