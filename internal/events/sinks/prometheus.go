package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/consulting-site/internal/events"
)

// PrometheusSink counts submissions and their latency by terminal state.
type PrometheusSink struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	byClass     *prometheus.CounterVec
}

// NewPrometheusSink registers its collectors with reg (default registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact submissions partitioned by terminal state.",
		}, []string{"state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contact_submission_duration_seconds",
			Help:    "Time spent in the submission pipeline by terminal state.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"state"}),
		byClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submission_failures_total",
			Help: "Failed contact submissions partitioned by failure class.",
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{s.submissions, s.duration, s.byClass} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register submission collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.submissions.WithLabelValues(evt.State).Inc()
		s.duration.WithLabelValues(evt.State).Observe(evt.Dur.Seconds())
		if evt.Class != "" && evt.Class != "none" {
			s.byClass.WithLabelValues(evt.Class).Inc()
		}
	}
	return nil
}

// Close is a no-op.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
