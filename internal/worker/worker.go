// Package worker runs the per-site scan pipeline: acquire a browser session,
// capture the mobile and desktop viewports, probe sources, look up metrics,
// run the reduced-motion check, persist the record and release the session.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/clock/system"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/session"
)

// ErrCanceled is returned when a scan was interrupted before its record could
// be persisted.
var ErrCanceled = errors.New("scan canceled")

// ScanContext is the explicit per-scan state handed through the pipeline.
type ScanContext struct {
	RunID    [16]byte
	Slot     int
	Request  crawler.ScanRequest
	Sessions *session.Registry
}

// Config controls Scanner behavior.
type Config struct {
	Mobile           crawler.Viewport
	Desktop          crawler.Viewport
	ScreenshotPrefix string
	// Screenshots enables viewport captures when the page shows media.
	Screenshots bool
}

// Deps are the collaborators a Scanner drives. Metrics, Prober and Blobs are
// optional.
type Deps struct {
	Browser   crawler.Browser
	Prober    crawler.Prober
	Metrics   crawler.MetricsClient
	Sink      crawler.RecordSink
	Blobs     crawler.BlobStore
	Emitter   progress.Emitter
	Clock     crawler.Clock
	Blocklist *crawler.IframeBlocklist
}

// Scanner executes the site scan state machine for one request at a time; a
// single Scanner is shared by every slot.
type Scanner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Scanner.
func New(deps Deps, cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.NopEmitter{}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Blocklist == nil {
		deps.Blocklist = crawler.NewIframeBlocklist(nil)
	}
	if cfg.Mobile == (crawler.Viewport{}) {
		cfg.Mobile = crawler.MobileViewport
	}
	if cfg.Desktop == (crawler.Viewport{}) {
		cfg.Desktop = crawler.DesktopViewport
	}
	if cfg.ScreenshotPrefix == "" {
		cfg.ScreenshotPrefix = "screenshots"
	}
	return &Scanner{deps: deps, cfg: cfg, logger: logger}
}

// Scan runs every stage for sc.Request and appends the aggregated record to
// the sink. The returned record is the one persisted. When ctx is canceled
// before persistence the record is dropped and ErrCanceled is returned.
func (s *Scanner) Scan(ctx context.Context, sc ScanContext) (crawler.SiteRecord, error) {
	start := s.deps.Clock.Now()
	logger := s.logger.With(zap.String("url", sc.Request.URL), zap.Int("slot", sc.Slot))
	s.emit(sc, progress.Event{Stage: progress.StageScanStart})

	rec, failure, err := s.scan(ctx, sc, logger)

	outcome, note := string(rec.Outcome), ""
	switch {
	case errors.Is(err, ErrCanceled):
		outcome = "canceled"
	case err != nil:
		note = err.Error()
	case failure != nil:
		note = failure.Message
	}
	s.done(sc, outcome, start, note)
	if err == nil {
		logger.Debug("scan complete", zap.String("outcome", outcome))
	}
	return rec, err
}

// scan owns the session for its whole duration; the deferred release runs
// after the record is persisted.
func (s *Scanner) scan(ctx context.Context, sc ScanContext, logger *zap.Logger) (crawler.SiteRecord, *crawler.Failure, error) {
	url := sc.Request.URL
	results := crawler.StageResults{URL: url}

	s.step(sc, progress.StepOpenBrowser)
	handle, err := s.acquire(ctx, sc)
	if err != nil {
		logger.Warn("could not open browser", zap.Error(err))
		results.Fail(crawler.OutcomeGeneralError, "acquire", err.Error())
	} else {
		defer s.release(sc, handle, logger)
		s.runStages(ctx, sc, handle.Session(), &results, logger)
	}

	if ctx.Err() != nil {
		logger.Info("scan interrupted, record not persisted")
		return crawler.SiteRecord{}, results.Failure, fmt.Errorf("scan %s: %w: %w", url, ErrCanceled, ctx.Err())
	}

	rec := crawler.Aggregate(results)
	s.step(sc, progress.StepSave)
	if err := s.deps.Sink.Append(ctx, rec); err != nil {
		logger.Error("persist record failed", zap.Error(err))
		return rec, results.Failure, fmt.Errorf("persist %s: %w", url, err)
	}
	return rec, results.Failure, nil
}

func (s *Scanner) acquire(ctx context.Context, sc ScanContext) (*session.Handle, error) {
	if sc.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	return sc.Sessions.Acquire(ctx, s.deps.Browser, sc.Request.URL, sc.Slot)
}

func (s *Scanner) release(sc ScanContext, h *session.Handle, logger *zap.Logger) {
	s.step(sc, progress.StepClose)
	if err := h.Release(); err != nil {
		logger.Warn("release browser session failed", zap.Error(err))
	}
}

// runStages is the outer handler: any error or panic escaping the stages
// becomes a GeneralError unless an earlier stage already classified the scan.
func (s *Scanner) runStages(
	ctx context.Context,
	sc ScanContext,
	sess crawler.Session,
	res *crawler.StageResults,
	logger *zap.Logger,
) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scan panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res.Fail(crawler.OutcomeGeneralError, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.stages(ctx, sc, sess, res, logger); err != nil {
		logger.Warn("scan failed", zap.Error(err))
		res.Fail(crawler.OutcomeGeneralError, "scan", err.Error())
	}
}

func (s *Scanner) stages(
	ctx context.Context,
	sc ScanContext,
	sess crawler.Session,
	res *crawler.StageResults,
	logger *zap.Logger,
) error {
	url := sc.Request.URL

	s.step(sc, progress.StepMobile)
	mobile, err := s.capture(ctx, sc, sess, s.cfg.Mobile, logger)
	if err != nil {
		outcome := crawler.Classify(err)
		logger.Warn("mobile scan failed", zap.String("outcome", string(outcome)), zap.Error(err))
		res.Fail(outcome, "mobile", err.Error())
		return nil
	}
	res.Mobile = mobile
	res.FinalURL = mobile.FinalURL

	s.step(sc, progress.StepDesktop)
	desktop, err := s.capture(ctx, sc, sess, s.cfg.Desktop, logger)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("desktop capture: %w", err)
		}
		logger.Warn("desktop scan failed", zap.Error(err))
	} else {
		res.Desktop = desktop
	}

	s.step(sc, progress.StepProbe)
	s.probe(ctx, res, logger)

	s.step(sc, progress.StepMetrics)
	s.lookupMetrics(ctx, res, logger)

	if vp, ok := crawler.MotionViewport(*res); ok {
		s.step(sc, progress.StepMotion)
		playing, err := s.motionCheck(ctx, sess, vp, url)
		if err != nil {
			return fmt.Errorf("reduced motion check: %w", err)
		}
		res.Motion = &crawler.MotionCheck{Viewport: vp, StillPlaying: playing}
	}
	return nil
}

// capture loads the request URL in a fresh page with vp and records the
// selected video, the qualifying iframes and, when media was found, a
// screenshot.
func (s *Scanner) capture(
	ctx context.Context,
	sc ScanContext,
	sess crawler.Session,
	vp crawler.Viewport,
	logger *zap.Logger,
) (*crawler.ViewportCapture, error) {
	url := sc.Request.URL
	page, err := sess.OpenPage(ctx, crawler.PageOptions{Viewport: vp})
	if err != nil {
		return nil, fmt.Errorf("open %s page: %w", vp.Name, err)
	}
	defer closePage(page, logger)

	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	finalURL, err := page.URL(ctx)
	if err != nil || finalURL == "" {
		finalURL = url
	}

	video, err := crawler.SelectVideo(ctx, page, vp, finalURL)
	if err != nil {
		return nil, fmt.Errorf("%s video: %w", vp.Name, err)
	}
	iframes, err := crawler.SelectIframes(ctx, page, vp, finalURL, s.deps.Blocklist)
	if err != nil {
		return nil, fmt.Errorf("%s iframes: %w", vp.Name, err)
	}
	capture := &crawler.ViewportCapture{
		Viewport: vp,
		FinalURL: finalURL,
		Video:    video,
		Iframes:  iframes,
	}

	if capture.HasMedia() && s.cfg.Screenshots && s.deps.Blobs != nil {
		s.step(sc, progress.StepScreenshot)
		uri, err := s.screenshot(ctx, page, url, vp)
		if err != nil {
			return nil, err
		}
		capture.ScreenshotURI = uri
		logger.Info("screenshot saved", zap.String("viewport", vp.Name), zap.String("uri", uri))
	}
	return capture, nil
}

func (s *Scanner) screenshot(ctx context.Context, page crawler.Page, url string, vp crawler.Viewport) (string, error) {
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("%s screenshot: %w", vp.Name, err)
	}
	name := crawler.ScreenshotName(s.cfg.ScreenshotPrefix, url, vp)
	uri, err := s.deps.Blobs.PutObject(ctx, name, "image/png", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store %s screenshot: %w", vp.Name, err)
	}
	return uri, nil
}

// probe analyzes every source of each selected video. Results for both
// viewports come from one ProbeAll call so shared sources run once.
func (s *Scanner) probe(ctx context.Context, res *crawler.StageResults, logger *zap.Logger) {
	if s.deps.Prober == nil {
		return
	}
	var (
		observations []*crawler.VideoObservation
		urls         []string
	)
	for _, c := range []*crawler.ViewportCapture{res.Mobile, res.Desktop} {
		if c == nil || c.Video == nil {
			continue
		}
		observations = append(observations, c.Video)
		urls = append(urls, c.Video.Sources...)
	}
	if len(urls) == 0 {
		return
	}
	probed := s.deps.Prober.ProbeAll(ctx, urls)
	for _, obs := range observations {
		obs.Probes = make(map[string]crawler.ProbeResult, len(obs.Sources))
		for _, src := range obs.Sources {
			result, ok := probed[src]
			if !ok {
				continue
			}
			if result.Failed {
				logger.Warn("ffprobe failed", zap.String("source", src), zap.String("error", result.Error))
			}
			obs.Probes[src] = result
		}
	}
}

func (s *Scanner) lookupMetrics(ctx context.Context, res *crawler.StageResults, logger *zap.Logger) {
	if s.deps.Metrics == nil {
		return
	}
	metrics, err := s.deps.Metrics.Lookup(ctx, res.URL)
	if err != nil {
		logger.Warn("speedyu lookup failed", zap.Error(err))
		return
	}
	res.Metrics = metrics
}

// motionCheck reloads the page with prefers-reduced-motion and reports
// whether the selected video still plays.
func (s *Scanner) motionCheck(ctx context.Context, sess crawler.Session, vp crawler.Viewport, url string) (bool, error) {
	page, err := sess.OpenPage(ctx, crawler.PageOptions{Viewport: vp, ReducedMotion: true})
	if err != nil {
		return false, fmt.Errorf("open reduced motion page: %w", err)
	}
	defer closePage(page, s.logger)

	if err := page.Navigate(ctx, url); err != nil {
		return false, err
	}
	base, err := page.URL(ctx)
	if err != nil || base == "" {
		base = url
	}
	obs, err := crawler.SelectVideo(ctx, page, vp, base)
	if err != nil {
		return false, err
	}
	return obs != nil && obs.Playing, nil
}

func closePage(page crawler.Page, logger *zap.Logger) {
	if err := page.Close(); err != nil {
		logger.Debug("close page failed", zap.Error(err))
	}
}

func (s *Scanner) step(sc ScanContext, step string) {
	s.emit(sc, progress.Event{Stage: progress.StageScanStep, Step: step})
}

func (s *Scanner) done(sc ScanContext, outcome string, start time.Time, note string) {
	dur := s.deps.Clock.Now().Sub(start)
	if dur < 0 {
		dur = 0
	}
	s.emit(sc, progress.Event{Stage: progress.StageScanDone, Outcome: outcome, Dur: dur, Note: note})
}

func (s *Scanner) emit(sc ScanContext, evt progress.Event) {
	evt.RunID = sc.RunID
	evt.TS = s.deps.Clock.Now()
	evt.Slot = sc.Slot
	evt.URL = sc.Request.URL
	s.deps.Emitter.Emit(evt)
}
