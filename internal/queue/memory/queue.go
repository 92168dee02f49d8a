// Package memory provides the in-process FIFO of scan requests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// ErrClosed is returned once the queue is closed and drained.
var ErrClosed = crawler.ErrQueueClosed

// Queue is a bounded in-memory FIFO with context-aware operations.
type Queue struct {
	ch      chan crawler.ScanRequest
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.ScanRequest, capacity),
	}
}

// Enqueue appends a request or returns if the context ends first.
func (q *Queue) Enqueue(ctx context.Context, req crawler.ScanRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// Dequeue pops the oldest request. After Close it keeps returning buffered
// requests until the queue is empty, then ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.ScanRequest, error) {
	select {
	case <-ctx.Done():
		return crawler.ScanRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return crawler.ScanRequest{}, ErrClosed
		}
		return req, nil
	}
}

// Len reports how many requests are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops further enqueues. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
