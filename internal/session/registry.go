// Package session tracks every live browser session in the process so each one
// is released exactly once, whichever path its scan exits through.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// Registry is a synchronized, non-owning index of live sessions. Scans own
// their sessions and release them; the registry only observes and, after the
// scheduler has drained, sweeps whatever leaked.
type Registry struct {
	mu     sync.Mutex
	live   map[uint64]*Handle
	nextID atomic.Uint64
	opened atomic.Int64
	closed atomic.Int64
	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		live:   make(map[uint64]*Handle),
		logger: logger,
	}
}

// Handle is a registered session. Release is idempotent.
type Handle struct {
	id      uint64
	url     string
	slot    int
	session crawler.Session
	reg     *Registry
	once    sync.Once
	err     error
}

// Session returns the underlying browser session.
func (h *Handle) Session() crawler.Session {
	return h.session
}

// Acquire opens a session through browser and registers it under url/slot.
func (r *Registry) Acquire(ctx context.Context, browser crawler.Browser, url string, slot int) (*Handle, error) {
	if browser == nil {
		return nil, errors.New("browser is required")
	}
	sess, err := browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	h := &Handle{
		id:      r.nextID.Add(1),
		url:     url,
		slot:    slot,
		session: sess,
		reg:     r,
	}
	r.mu.Lock()
	r.live[h.id] = h
	r.mu.Unlock()
	r.opened.Add(1)
	return h, nil
}

// Release closes the session and removes it from the registry. Subsequent
// calls return the first call's result without closing again.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.reg.mu.Lock()
		delete(h.reg.live, h.id)
		h.reg.mu.Unlock()
		if err := h.session.Close(); err != nil {
			h.err = fmt.Errorf("close browser session: %w", err)
		}
		h.reg.closed.Add(1)
	})
	return h.err
}

// Len returns the number of sessions not yet released.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Stats reports how many sessions have been opened and closed.
func (r *Registry) Stats() (opened, closed int64) {
	return r.opened.Load(), r.closed.Load()
}

// CloseAll releases every session still registered and returns how many it
// had to close. In a clean run it returns 0.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	leaked := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		leaked = append(leaked, h)
	}
	r.mu.Unlock()

	for _, h := range leaked {
		r.logger.Warn("releasing leaked browser session",
			zap.String("url", h.url),
			zap.Int("slot", h.slot),
		)
		if err := h.Release(); err != nil {
			r.logger.Warn("leaked session close failed", zap.String("url", h.url), zap.Error(err))
		}
	}
	return len(leaked)
}
