// Package dispatcher schedules site scans over a bounded set of slots.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/clock/system"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/session"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/worker"
)

// DefaultMaxConcurrent is the slot count used when Config leaves it unset.
const DefaultMaxConcurrent = 10

// Scanner runs one site scan.
type Scanner interface {
	Scan(ctx context.Context, sc worker.ScanContext) (crawler.SiteRecord, error)
}

// Config controls the Dispatcher.
type Config struct {
	MaxConcurrent int
	RunID         [16]byte
}

// Summary reports how a run went.
type Summary struct {
	Total     int
	Persisted int
	Failed    int
	Canceled  int
	Outcomes  map[crawler.Outcome]int
	Duration  time.Duration
}

// Dispatcher pulls scan requests from the queue and runs each one in the
// lowest free slot, never exceeding MaxConcurrent scans at a time.
type Dispatcher struct {
	queue    crawler.Queue
	scanner  Scanner
	sessions *session.Registry
	slots    *slotPool
	cfg      Config
	emitter  progress.Emitter
	clock    crawler.Clock
	logger   *zap.Logger
}

// New creates a Dispatcher. emitter and logger may be nil.
func New(
	queue crawler.Queue,
	scanner Scanner,
	sessions *session.Registry,
	cfg Config,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    queue,
		scanner:  scanner,
		sessions: sessions,
		slots:    newSlotPool(cfg.MaxConcurrent),
		cfg:      cfg,
		emitter:  emitter,
		clock:    system.New(),
		logger:   logger,
	}
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, req crawler.ScanRequest) error {
	if err := d.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// RunBatch feeds reqs through the queue, closes it and blocks until every
// request has been scanned or ctx is canceled. In-flight scans are always
// waited for before it returns.
func (d *Dispatcher) RunBatch(ctx context.Context, reqs []crawler.ScanRequest) (Summary, error) {
	feedErr := make(chan error, 1)
	go func() {
		defer d.queue.Close()
		for _, req := range reqs {
			if err := d.queue.Enqueue(ctx, req); err != nil {
				feedErr <- err
				return
			}
		}
		feedErr <- nil
	}()

	sum := d.Run(ctx, len(reqs))
	err := <-feedErr
	if ctx.Err() != nil {
		return sum, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if err != nil {
		return sum, fmt.Errorf("queue enqueue: %w", err)
	}
	return sum, nil
}

// Run consumes the queue until it is closed and drained, or ctx ends. total
// is only reported on the run-start event.
func (d *Dispatcher) Run(ctx context.Context, total int) Summary {
	start := d.clock.Now()
	d.emit(progress.Event{Stage: progress.StageRunStart, Total: total})
	d.logger.Info("run started", zap.Int("total", total), zap.Int("max_concurrent", d.cfg.MaxConcurrent))

	t := &tally{outcomes: make(map[crawler.Outcome]int)}
	var wg sync.WaitGroup
	for {
		slot, err := d.slots.acquire(ctx)
		if err != nil {
			break
		}
		req, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.slots.release(slot)
			if errors.Is(err, crawler.ErrQueueClosed) || ctx.Err() != nil {
				break
			}
			d.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if ctx.Err() != nil {
			d.slots.release(slot)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.slots.release(slot)
			d.dispatch(ctx, slot, req, t)
		}()
	}
	wg.Wait()

	sum := t.summary()
	sum.Duration = d.clock.Now().Sub(start)
	d.emit(progress.Event{Stage: progress.StageRunDone, Total: sum.Total, Dur: sum.Duration})
	d.logger.Info("run finished",
		zap.Int("scanned", sum.Total),
		zap.Int("persisted", sum.Persisted),
		zap.Int("failed", sum.Failed),
		zap.Int("canceled", sum.Canceled),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}

// dispatch runs one scan. Whatever happens inside it counts as completion
// of the request.
func (d *Dispatcher) dispatch(ctx context.Context, slot int, req crawler.ScanRequest, t *tally) {
	logger := d.logger.With(zap.String("url", req.URL), zap.Int("slot", slot))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scan panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			t.fail()
		}
	}()
	rec, err := d.scanner.Scan(ctx, worker.ScanContext{
		RunID:    d.cfg.RunID,
		Slot:     slot,
		Request:  req,
		Sessions: d.sessions,
	})
	switch {
	case errors.Is(err, worker.ErrCanceled):
		t.cancel()
	case err != nil:
		logger.Error("scan failed", zap.Error(err))
		t.fail()
	default:
		t.record(rec.Outcome)
	}
}

func (d *Dispatcher) emit(evt progress.Event) {
	evt.RunID = d.cfg.RunID
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}

// slotPool hands out the lowest free slot index.
type slotPool struct {
	sem  chan struct{}
	mu   sync.Mutex
	busy []bool
}

func newSlotPool(n int) *slotPool {
	return &slotPool{sem: make(chan struct{}, n), busy: make([]bool, n)}
}

func (p *slotPool) acquire(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, fmt.Errorf("acquire slot: %w", ctx.Err())
	case p.sem <- struct{}{}:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, busy := range p.busy {
		if !busy {
			p.busy[i] = true
			return i, nil
		}
	}
	// The semaphore guarantees a free index.
	panic("dispatcher: no free slot")
}

func (p *slotPool) release(slot int) {
	p.mu.Lock()
	p.busy[slot] = false
	p.mu.Unlock()
	<-p.sem
}

type tally struct {
	mu        sync.Mutex
	total     int
	persisted int
	failed    int
	canceled  int
	outcomes  map[crawler.Outcome]int
}

func (t *tally) record(outcome crawler.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.persisted++
	t.outcomes[outcome]++
}

func (t *tally) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.failed++
}

func (t *tally) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.canceled++
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Summary{
		Total:     t.total,
		Persisted: t.persisted,
		Failed:    t.failed,
		Canceled:  t.canceled,
		Outcomes:  make(map[crawler.Outcome]int, len(t.outcomes)),
	}
	for k, v := range t.outcomes {
		out.Outcomes[k] = v
	}
	return out
}
