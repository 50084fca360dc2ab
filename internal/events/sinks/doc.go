// Package sinks implements events.Sink for structured logs, Prometheus,
// the outcome repository and Google Cloud Pub/Sub.
package sinks
