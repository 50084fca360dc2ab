package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHubFlushesFullBatch(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent("delivered"))
	hub.Emit(sampleEvent("dropped"))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesPartialBatchAfterWait(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent("rate_limited"))
	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubCloseDrainsAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)

	hub.Emit(sampleEvent("delivered"))
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
	require.Equal(t, 1, sink.Closed())

	hub.Emit(sampleEvent("delivered"))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)

	hub.Emit(Event{State: "delivered", Status: 200})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		intake: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent("delivered"))
	hub.Emit(sampleEvent("delivered"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHubSinkFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	good := newRecordingSink()
	hub := NewHub(Config{MaxBatchEvents: 1, Logger: zap.New(core)}, failingSink{}, good, nil)

	hub.Emit(sampleEvent("delivered"))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, good.Batches(), 1)
	require.Equal(t, 1, logs.FilterMessage("event sink consume failed").Len())
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent("delivered"))
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := sampleEvent("delivered")
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Event){
		"missing id":    func(e *Event) { e.ID = [16]byte{} },
		"missing ts":    func(e *Event) { e.TS = time.Time{} },
		"missing state": func(e *Event) { e.State = "" },
		"bad status":    func(e *Event) { e.Status = 42 },
		"negative dur":  func(e *Event) { e.Dur = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			evt := sampleEvent("delivered")
			mutate(&evt)
			require.Error(t, evt.Validate())
		})
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *recordingSink) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type failingSink struct{}

func (failingSink) Consume(context.Context, []Event) error { return errors.New("boom") }

func (failingSink) Close(context.Context) error { return nil }

func sampleEvent(state string) Event {
	return Event{
		ID:       [16]byte(uuid.New()),
		TS:       time.Now().UTC(),
		State:    state,
		Class:    "none",
		Status:   200,
		ClientIP: "203.0.113.9",
	}
}
