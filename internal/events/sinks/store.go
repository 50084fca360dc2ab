package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/events"
	"github.com/JakeFAU/consulting-site/internal/store"
)

// StoreSink appends one audit row per event.
type StoreSink struct {
	repo   store.OutcomeRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo store.OutcomeRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume writes the whole batch in one call.
func (s *StoreSink) Consume(ctx context.Context, batch []events.Event) error {
	if s == nil || s.repo == nil || len(batch) == 0 {
		return nil
	}
	records := make([]store.OutcomeRecord, 0, len(batch))
	for _, evt := range batch {
		records = append(records, toRecord(evt))
	}
	if err := s.repo.InsertOutcomes(ctx, records); err != nil {
		return fmt.Errorf("insert outcomes: %w", err)
	}
	s.logger.Debug("outcomes persisted", zap.Int("count", len(records)))
	return nil
}

// Close is a no-op; the repository owner closes the pool.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func toRecord(evt events.Event) store.OutcomeRecord {
	rec := store.OutcomeRecord{
		ID:         evt.UUID(),
		FinishedAt: evt.TS,
		State:      evt.State,
		Class:      evt.Class,
		Status:     evt.Status,
		ClientIP:   evt.ClientIP,
		DurationMs: evt.Dur.Milliseconds(),
	}
	if evt.ProviderID != "" {
		id := evt.ProviderID
		rec.ProviderID = &id
	}
	if evt.Note != "" {
		note := evt.Note
		rec.Note = &note
	}
	return rec
}
