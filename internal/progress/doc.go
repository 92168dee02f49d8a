// Package progress provides the events scans emit to report where each slot
// is, and the Hub that batches them on a background goroutine for the slot
// board, Prometheus metrics and the structured log.
package progress
