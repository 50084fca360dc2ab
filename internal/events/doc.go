// Package events carries one record per finished contact submission to a set of
// sinks (logs, metrics, an audit table, a Pub/Sub topic). Emitting never blocks
// the request; records are batched on a background goroutine.
package events
