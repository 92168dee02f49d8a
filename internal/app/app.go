// Package app wires the long-lived scan services together and owns their
// shutdown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/api"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/config"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/dispatcher"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/fetcher/headless"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/id/uuid"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/metrics"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/probe"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress/sinks"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/queue/memory"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/session"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/speedyu"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/csvsink"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/gcs"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/local"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/worker"
)

const closeTimeout = 10 * time.Second

// Options replace collaborators that would otherwise be built from Config.
// Zero values select the production implementation.
type Options struct {
	Browser    crawler.Browser
	Analyzer   probe.Analyzer
	HTTPClient *http.Client
	// BoardOut receives one line per progress transition; nil silences it.
	BoardOut io.Writer
}

// App holds the services for one scan run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    [16]byte
	registry *prometheus.Registry

	hub        *progress.Hub
	board      *sinks.BoardSink
	sessions   *session.Registry
	pool       *probe.Pool
	sink       *csvsink.Sink
	blobCloser io.Closer
	dispatch   *dispatcher.Dispatcher
	server     *api.Server
}

// New builds every service described by cfg. Nothing is launched until Run.
func New(ctx context.Context, cfg config.Config, opts Options, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewRunID()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("run_id", uuid.String(runID)))

	a := &App{cfg: cfg, logger: logger, runID: runID, registry: prometheus.NewRegistry()}
	if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, err
	}
	a.board = sinks.NewBoardSink(opts.BoardOut)
	a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")), promSink, a.board)

	blobs, blobCloser, err := storage.NewBlobStore(ctx, storage.Config{
		Backend: cfg.Storage.Backend,
		Local:   local.Config{Dir: cfg.Storage.LocalDir},
		GCS:     gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix},
	})
	if err != nil {
		a.abort()
		return nil, err
	}
	a.blobCloser = blobCloser

	sink, err := csvsink.New(cfg.CSVPath())
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("open record file: %w", err)
	}
	a.sink = sink

	browser := opts.Browser
	if browser == nil {
		browser = headless.NewChromedp(headless.Config{
			ExecPath:          cfg.Browser.ExecPath,
			UserAgent:         cfg.Browser.UserAgent,
			NoSandbox:         cfg.Browser.NoSandbox,
			UnmutedAutoplay:   cfg.Browser.UnmutedAutoplay,
			NavigationTimeout: cfg.Scan.NavTimeout,
			SettleDelay:       cfg.Scan.SettleDelay,
		}, logger.Named("browser"))
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = probe.NewFFProbe(cfg.Probe.Binary, cfg.Probe.Timeout, nil)
	}
	a.pool = probe.NewPool(analyzer, cfg.Probe.Workers, logger.Named("probe"))

	a.sessions = session.NewRegistry(logger.Named("sessions"))
	scanner := worker.New(worker.Deps{
		Browser:   browser,
		Prober:    a.pool,
		Metrics:   newMetricsClient(cfg.Metrics, opts.HTTPClient, logger.Named("speedyu")),
		Sink:      sink,
		Blobs:     blobs,
		Emitter:   a.hub,
		Blocklist: iframeBlocklist(cfg.Scan),
	}, worker.Config{
		Mobile:           cfg.MobileViewport(),
		Desktop:          cfg.DesktopViewport(),
		ScreenshotPrefix: cfg.Storage.Prefix,
		Screenshots:      cfg.Storage.Screenshots,
	}, logger.Named("worker"))

	a.dispatch = dispatcher.New(
		memory.NewQueue(cfg.Scan.MaxConcurrent),
		scanner,
		a.sessions,
		dispatcher.Config{MaxConcurrent: cfg.Scan.MaxConcurrent, RunID: runID},
		a.hub,
		logger.Named("dispatcher"),
	)

	if cfg.Server.Enabled {
		httpMetrics, err := metrics.NewHTTP(a.registry)
		if err != nil {
			a.abort()
			return nil, err
		}
		a.server = api.NewServer(a.board, a.registry, httpMetrics, logger.Named("api"))
	}
	return a, nil
}

// iframeBlocklist uses the configured fragments, or the built-in list when
// none are configured.
func iframeBlocklist(cfg config.ScanConfig) *crawler.IframeBlocklist {
	if len(cfg.IframeBlocklist) == 0 {
		return crawler.NewIframeBlocklist(crawler.DefaultIframeBlocklist)
	}
	return crawler.NewIframeBlocklist(cfg.IframeBlocklist)
}

// newMetricsClient prefers explicit settings and falls back to the secrets
// file. Without either the client is disabled.
func newMetricsClient(cfg config.MetricsConfig, httpClient *http.Client, logger *zap.Logger) *speedyu.Client {
	apiURL, apiKey := cfg.APIURL, cfg.APIKey
	if (apiURL == "" || apiKey == "") && cfg.SecretsFile != "" {
		secrets, err := speedyu.LoadSecrets(cfg.SecretsFile)
		switch {
		case err == nil:
			if apiURL == "" {
				apiURL = secrets.APIURL
			}
			if apiKey == "" {
				apiKey = secrets.APIKey
			}
		case errors.Is(err, os.ErrNotExist):
			logger.Info("no secrets file, site metrics disabled", zap.String("path", cfg.SecretsFile))
		default:
			logger.Warn("secrets file unreadable, site metrics disabled", zap.Error(err))
		}
	}
	return speedyu.New(speedyu.Config{
		APIURL:        apiURL,
		APIKey:        apiKey,
		SiteBaseURL:   cfg.SiteBaseURL,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		Timeout:       cfg.Timeout,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		Country:       cfg.Country,
	}, httpClient, logger)
}

// RunID identifies this run on progress events.
func (a *App) RunID() [16]byte {
	return a.runID
}

// Board exposes the live slot board.
func (a *App) Board() *sinks.BoardSink {
	return a.board
}

// Gatherer exposes the run's Prometheus registry.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.registry
}

// Run scans reqs to completion or until ctx ends. Every session opened during
// the run is closed before Run returns.
func (a *App) Run(ctx context.Context, reqs []crawler.ScanRequest) (dispatcher.Summary, error) {
	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	if a.server != nil {
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		go func() { serverDone <- a.server.ListenAndServe(serverCtx, addr) }()
		a.server.SetReady(true)
	} else {
		serverDone <- nil
	}

	a.logger.Info("scan run starting",
		zap.Int("urls", len(reqs)),
		zap.Int("max_concurrent", a.cfg.Scan.MaxConcurrent),
		zap.String("output", a.cfg.CSVPath()),
	)
	sum, err := a.dispatch.RunBatch(ctx, reqs)

	if n := a.sessions.CloseAll(); n > 0 {
		a.logger.Warn("closed leftover browser sessions", zap.Int("count", n))
	}
	opened, closed := a.sessions.Stats()
	a.logger.Info("scan run finished",
		zap.Int("scanned", sum.Total),
		zap.Int("persisted", sum.Persisted),
		zap.Int("failed", sum.Failed),
		zap.Int("canceled", sum.Canceled),
		zap.Int64("sessions_opened", opened),
		zap.Int64("sessions_closed", closed),
		zap.Duration("duration", sum.Duration),
	)

	if a.server != nil {
		a.server.SetReady(false)
	}
	stopServer()
	if serr := <-serverDone; serr != nil {
		a.logger.Error("status server failed", zap.Error(serr))
	}
	return sum, err
}

// Close flushes progress and closes the record file and stores.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close record file: %w", err))
		}
	}
	if a.blobCloser != nil {
		if err := a.blobCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close blob store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// abort releases what New managed to build before failing.
func (a *App) abort() {
	if err := a.Close(); err != nil {
		a.logger.Warn("cleanup after init failure", zap.Error(err))
	}
}
