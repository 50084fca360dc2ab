// Package metrics exposes Prometheus collectors for the site's HTTP surface.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	httpRequestsInFlight       prometheus.Gauge
	buildInfo                  *prometheus.GaugeVec
	throttleDelaySeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		httpRequestsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being served.",
			},
		)

		throttleDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_throttle_delay_seconds",
				Help:    "Time outbound provider calls waited for a send token.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"provider"},
		)

		buildInfo = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "site_build_info",
				Help: "Build information of the running site binary.",
			},
			[]string{"version"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo publishes the running version as a constant gauge.
func SetBuildInfo(version string) {
	Init()
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveThrottleDelay records how long a provider call waited for a token.
func ObserveThrottleDelay(provider string, d time.Duration) {
	Init()
	throttleDelaySeconds.WithLabelValues(provider).Observe(d.Seconds())
}

// TrackRateLimitKeys exposes the number of client keys held by an in-process
// rate limiter. Registering twice keeps the first collector.
func TrackRateLimitKeys(reg prometheus.Registerer, size func() int) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ratelimit_tracked_keys",
			Help: "Client keys currently held by the in-memory rate limiter.",
		},
		func() float64 { return float64(size()) },
	)
	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return fmt.Errorf("register rate limit gauge: %w", err)
	}
	return nil
}
