// Package headless drives headless Chrome through chromedp to render pages and
// inspect their media elements.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultSettleDelay       = 2 * time.Second
)

// Config controls how browsers are launched and pages loaded.
type Config struct {
	ExecPath          string
	UserAgent         string
	NoSandbox         bool
	NavigationTimeout time.Duration
	// SettleDelay is how long to wait after load so autoplaying media starts.
	// Zero selects the default; a negative value disables the wait.
	SettleDelay time.Duration
	// UnmutedAutoplay lets videos with sound autoplay without a user gesture.
	// Stock Chrome blocks them, so it stays off by default.
	UnmutedAutoplay bool
}

// Browser launches one Chrome process per session.
type Browser struct {
	cfg    Config
	logger *zap.Logger
}

// NewChromedp returns a Browser backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) *Browser {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	switch {
	case cfg.SettleDelay == 0:
		cfg.SettleDelay = defaultSettleDelay
	case cfg.SettleDelay < 0:
		cfg.SettleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{cfg: cfg, logger: logger}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if b.cfg.UnmutedAutoplay {
		opts = append(opts, chromedp.Flag("autoplay-policy", "no-user-gesture-required"))
	}
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	if b.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// NewSession starts a Chrome process and waits until it accepts commands.
func (b *Browser) NewSession(ctx context.Context) (crawler.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chromedp warmup: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &session{
		cfg:           b.cfg,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        b.logger,
	}, nil
}

type session struct {
	cfg           Config
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenPage creates a tab in a fresh browser context with the requested
// viewport and media emulation.
func (s *session) OpenPage(ctx context.Context, opts crawler.PageOptions) (crawler.Page, error) {
	if s.browserCtx.Err() != nil {
		return nil, crawler.ErrSessionClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithNewBrowserContext())

	p := &page{
		cfg:    s.cfg,
		ctx:    tabCtx,
		cancel: tabCancel,
		meta:   newResponseMeta(),
	}
	chromedp.ListenTarget(tabCtx, p.meta.captureEvent)

	// The first Run creates the target and must use the tab context itself.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := p.run(ctx, p.setupActions(opts)...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

// Close shuts the browser down gracefully, then tears down the process.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close chrome: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

func (p *page) setupActions(opts crawler.PageOptions) []chromedp.Action {
	vp := opts.Viewport
	emulate := []chromedp.EmulateViewportOption{}
	if vp.Mobile {
		emulate = append(emulate, chromedp.EmulateMobile, chromedp.EmulateTouch)
	}
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height), emulate...),
	}
	if opts.ReducedMotion {
		actions = append(actions, emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-reduced-motion", Value: "reduce"},
		}))
	}
	return actions
}

type responseMeta struct {
	mu     sync.RWMutex
	seen   bool
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Only the main document counts; iframe documents arrive later.
	if m.seen {
		return
	}
	m.seen = true
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshot() (status int, url string, seen bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url, m.seen
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.seen, m.status, m.url = false, 0, ""
	m.mu.Unlock()
}

// navigationError maps chromedp failures and document status codes onto the
// crawler sentinels.
func navigationError(rawURL string, err error, status int) error {
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "ERR_NAME_NOT_RESOLVED"),
			strings.Contains(msg, "ERR_NAME_RESOLUTION_FAILED"):
			return fmt.Errorf("navigate %s: %w: %w", rawURL, crawler.ErrUnresolved, err)
		default:
			return fmt.Errorf("navigate %s: %w", rawURL, err)
		}
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("navigate %s: status %d: %w", rawURL, status, crawler.ErrNotFound)
	}
	return nil
}
