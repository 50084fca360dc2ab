package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/consulting-site/internal/events"
)

// PubSubSink publishes each event as a JSON message on a topic.
type PubSubSink struct {
	topic *pubsub.Topic
}

// NewPubSubSink publishes to topic. The sink stops the topic on Close.
func NewPubSubSink(topic *pubsub.Topic) (*PubSubSink, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is required")
	}
	return &PubSubSink{topic: topic}, nil
}

type eventMessage struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	State      string    `json:"state"`
	Class      string    `json:"class"`
	Status     int       `json:"status"`
	ClientIP   string    `json:"client_ip"`
	ProviderID string    `json:"provider_id,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Note       string    `json:"note,omitempty"`
}

// Consume publishes the batch and waits for every server ack.
func (s *PubSubSink) Consume(ctx context.Context, batch []events.Event) error {
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, evt := range batch {
		data, err := json.Marshal(eventMessage{
			ID:         evt.UUID().String(),
			TS:         evt.TS,
			State:      evt.State,
			Class:      evt.Class,
			Status:     evt.Status,
			ClientIP:   evt.ClientIP,
			ProviderID: evt.ProviderID,
			DurationMs: evt.Dur.Milliseconds(),
			Note:       evt.Note,
		})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		attrs := map[string]string{
			"state":  evt.State,
			"status": strconv.Itoa(evt.Status),
		}
		otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(attrs))
		results = append(results, s.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}))
	}

	var errs []error
	for _, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %d of %d events: %w", len(errs), len(batch), errors.Join(errs...))
	}
	return nil
}

// Close flushes pending publishes.
func (s *PubSubSink) Close(context.Context) error {
	s.topic.Stop()
	return nil
}

// attributeCarrier adapts message attributes for trace propagation.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string { return c[key] }

func (c attributeCarrier) Set(key, value string) { c[key] = value }

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
