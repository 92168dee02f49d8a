package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
)

// PrometheusSink exports scan progress via Prometheus. It owns the collectors
// for scans started/completed/running and the per-step counter.
type PrometheusSink struct {
	scansStarted   prometheus.Counter
	scansCompleted *prometheus.CounterVec
	scansRunning   prometheus.Gauge
	scanDuration   *prometheus.HistogramVec
	steps          *prometheus.CounterVec
	queued         prometheus.Gauge

	tracker *scanTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videoscan_scans_started_total",
			Help: "Site scans that have started.",
		}),
		scansCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videoscan_scans_completed_total",
			Help: "Site scans completed partitioned by outcome.",
		}, []string{"outcome"}),
		scansRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "videoscan_scans_running",
			Help: "Site scans currently occupying a slot.",
		}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "videoscan_scan_duration_seconds",
			Help:    "Wall time per completed site scan.",
			Buckets: []float64{5, 10, 20, 30, 60, 90, 120, 180, 300},
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videoscan_steps_total",
			Help: "Pipeline steps entered partitioned by step.",
		}, []string{"step"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "videoscan_urls_total",
			Help: "URLs queued for the current run.",
		}),
		tracker: newScanTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.scansStarted,
		s.scansCompleted,
		s.scansRunning,
		s.scanDuration,
		s.steps,
		s.queued,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.queued.Set(float64(evt.Total))
	case progress.StageScanStart:
		s.scansStarted.Inc()
		if s.tracker.start(evt.RunID, evt.URL) {
			s.scansRunning.Inc()
		}
	case progress.StageScanStep:
		s.steps.WithLabelValues(evt.Step).Inc()
	case progress.StageScanDone:
		s.scansCompleted.WithLabelValues(evt.Outcome).Inc()
		if evt.Dur > 0 {
			s.scanDuration.WithLabelValues(evt.Outcome).Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.RunID, evt.URL) {
			s.scansRunning.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type scanKey struct {
	run [16]byte
	url string
}

type scanTracker struct {
	mu      sync.Mutex
	running map[scanKey]struct{}
}

func newScanTracker() *scanTracker {
	return &scanTracker{running: make(map[scanKey]struct{})}
}

func (t *scanTracker) start(run [16]byte, url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := scanKey{run: run, url: url}
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *scanTracker) complete(run [16]byte, url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := scanKey{run: run, url: url}
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
