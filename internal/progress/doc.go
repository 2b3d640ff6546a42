// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the collection pipeline uses to report what it is doing. The
// pipeline never writes to a console or UI directly: it emits events, and the
// hub batches them on a background goroutine and fans them out to pluggable
// sinks such as structured logs, Prometheus metrics or the run registry.
package progress
