package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/events"
)

// LogSink writes one debug line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger; nil discards.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.logger.Debug("submission event",
			zap.Stringer("id", evt.UUID()),
			zap.Time("ts", evt.TS),
			zap.String("state", evt.State),
			zap.String("class", evt.Class),
			zap.Int("status", evt.Status),
			zap.String("client_ip", evt.ClientIP),
			zap.String("provider_id", evt.ProviderID),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
