package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// ErrPoolClosed is reported for probes submitted after Close.
var ErrPoolClosed = errors.New("probe pool closed")

// Analyzer probes a single URL.
type Analyzer interface {
	Probe(ctx context.Context, url string) crawler.ProbeResult
}

type job struct {
	ctx   context.Context
	url   string
	reply chan crawler.ProbeResult
}

// Pool runs probes on a fixed set of worker goroutines. Callers block only on
// their own reply, so other scans keep progressing while a probe runs.
type Pool struct {
	analyzer  Analyzer
	workers   int
	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewPool starts workers goroutines consuming probe jobs.
func NewPool(analyzer Analyzer, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		analyzer: analyzer,
		workers:  workers,
		jobs:     make(chan job),
		done:     make(chan struct{}),
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			start := time.Now()
			result := p.analyzer.Probe(j.ctx, j.url)
			if result.URL == "" {
				result.URL = j.url
			}
			p.logger.Debug("probe finished",
				zap.Int("worker", id),
				zap.String("src", j.url),
				zap.Bool("failed", result.Failed),
				zap.Duration("dur", time.Since(start)),
			)
			j.reply <- result
		}
	}
}

// Probe submits url and waits for its result, the pool closing, or ctx.
func (p *Pool) Probe(ctx context.Context, url string) crawler.ProbeResult {
	j := job{ctx: ctx, url: url, reply: make(chan crawler.ProbeResult, 1)}
	select {
	case p.jobs <- j:
	case <-p.done:
		return failed(url, ErrPoolClosed)
	case <-ctx.Done():
		return failed(url, fmt.Errorf("probe wait canceled: %w", ctx.Err()))
	}
	select {
	case result := <-j.reply:
		return result
	case <-ctx.Done():
		return failed(url, fmt.Errorf("probe wait canceled: %w", ctx.Err()))
	}
}

// ProbeAll probes every distinct url concurrently, bounded by the worker
// count, and returns the results keyed by url.
func (p *Pool) ProbeAll(ctx context.Context, urls []string) map[string]crawler.ProbeResult {
	results := make(map[string]crawler.ProbeResult, len(urls))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, url := range urls {
		mu.Lock()
		_, seen := results[url]
		if !seen {
			results[url] = crawler.ProbeResult{URL: url}
		}
		mu.Unlock()
		if seen {
			continue
		}
		g.Go(func() error {
			result := p.Probe(ctx, url)
			mu.Lock()
			results[url] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Close stops the workers after in-flight probes finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
