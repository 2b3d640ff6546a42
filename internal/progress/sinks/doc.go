// Package sinks implements progress consumers: structured logging, Prometheus
// collectors and the in-memory run registry. Each sink satisfies
// progress.Sink.
package sinks
