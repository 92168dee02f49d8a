// Package sinks implements concrete progress consumers: the per-slot board,
// Prometheus collectors, and structured logging. Each sink satisfies the
// progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
