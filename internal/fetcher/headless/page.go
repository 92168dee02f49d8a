package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

type page struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	meta   *responseMeta

	closeOnce sync.Once
}

// run executes actions on the tab, aborting when either the tab or ctx ends.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chromedp run: %w", ctx.Err())
		}
		if p.ctx.Err() != nil {
			return crawler.ErrSessionClosed
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// Navigate loads rawURL, bounded by the navigation timeout, then waits the
// settle delay so autoplaying media can start.
func (p *page) Navigate(ctx context.Context, rawURL string) error {
	p.meta.reset()
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout())
	defer cancel()

	err := p.run(navCtx, chromedp.Navigate(rawURL))
	status, _, _ := p.meta.snapshot()
	if navErr := navigationError(rawURL, err, status); navErr != nil {
		return navErr
	}
	if p.cfg.SettleDelay > 0 {
		if err := p.run(ctx, chromedp.Sleep(p.cfg.SettleDelay)); err != nil {
			return fmt.Errorf("settle after load: %w", err)
		}
	}
	return nil
}

func (p *page) navTimeout() time.Duration {
	if p.cfg.NavigationTimeout > 0 {
		return p.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// URL returns the location after redirects.
func (p *page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	if loc == "" {
		_, docURL, _ := p.meta.snapshot()
		loc = docURL
	}
	return loc, nil
}

func (p *page) count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(countScript, selector), &n)); err != nil {
		return 0, fmt.Errorf("count %s elements: %w", selector, err)
	}
	return n, nil
}

// Videos returns handles for every <video> in document order.
func (p *page) Videos(ctx context.Context) ([]crawler.VideoElement, error) {
	n, err := p.count(ctx, "video")
	if err != nil {
		return nil, err
	}
	out := make([]crawler.VideoElement, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &videoElement{element{page: p, selector: "video", index: i}})
	}
	return out, nil
}

// Iframes returns handles for every <iframe> in document order.
func (p *page) Iframes(ctx context.Context) ([]crawler.IframeElement, error) {
	n, err := p.count(ctx, "iframe")
	if err != nil {
		return nil, err
	}
	out := make([]crawler.IframeElement, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &iframeElement{element{page: p, selector: "iframe", index: i}})
	}
	return out, nil
}

// Screenshot captures the visible viewport as PNG.
func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab and its browser context.
func (p *page) Close() error {
	p.closeOnce.Do(func() {
		_ = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return nil
}

// element addresses the index-th match of selector. Handles stay valid as
// long as the page does not reorder its media elements.
type element struct {
	page     *page
	selector string
	index    int
}

func (e element) eval(ctx context.Context, body string, out any) error {
	script := fmt.Sprintf(elementScript, e.selector, e.index, body)
	if err := e.page.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate %s[%d]: %w", e.selector, e.index, err)
	}
	return nil
}

type boxResult struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (b boxResult) toBox() *crawler.Box {
	if !b.Found || !b.Visible {
		return nil
	}
	return &crawler.Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (e element) BoundingBox(ctx context.Context) (*crawler.Box, error) {
	var res boxResult
	if err := e.eval(ctx, boxBody, &res); err != nil {
		return nil, err
	}
	return res.toBox(), nil
}

type videoElement struct {
	element
}

func (v *videoElement) IsPlaying(ctx context.Context) (bool, error) {
	var res struct {
		Value bool `json:"value"`
	}
	err := v.eval(ctx, `return {found: true, value: !el.paused && !el.ended && el.readyState > 2};`, &res)
	return res.Value, err
}

func (v *videoElement) CurrentSrc(ctx context.Context) (string, error) {
	var res struct {
		Value string `json:"value"`
	}
	err := v.eval(ctx, `return {found: true, value: el.currentSrc || el.src || ""};`, &res)
	return res.Value, err
}

func (v *videoElement) Sources(ctx context.Context) ([]string, error) {
	var res struct {
		Value []string `json:"value"`
	}
	if err := v.eval(ctx, sourcesBody, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (v *videoElement) Tracks(ctx context.Context) ([]crawler.Track, error) {
	var res struct {
		Value []crawler.Track `json:"value"`
	}
	if err := v.eval(ctx, tracksBody, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (v *videoElement) Attributes(ctx context.Context) (crawler.VideoAttributes, error) {
	var res struct {
		Value crawler.VideoAttributes `json:"value"`
	}
	err := v.eval(ctx, attributesBody, &res)
	return res.Value, err
}

type iframeElement struct {
	element
}

func (f *iframeElement) Src(ctx context.Context) (string, error) {
	var res struct {
		Value string `json:"value"`
	}
	err := f.eval(ctx, `return {found: true, value: el.getAttribute("src") || ""};`, &res)
	return res.Value, err
}

const countScript = `document.querySelectorAll(%q).length`

// elementScript wraps body so it runs against el and always yields an object.
const elementScript = `(() => {
	const el = document.querySelectorAll(%q)[%d];
	if (!el) { return {found: false}; }
	%s
})()`

const boxBody = `if (!el.getClientRects().length) { return {found: true, visible: false}; }
	const r = el.getBoundingClientRect();
	return {found: true, visible: true, x: r.x, y: r.y, width: r.width, height: r.height};`

const sourcesBody = `const out = [];
	const own = el.getAttribute("src");
	if (own) { out.push(own); }
	for (const s of el.querySelectorAll("source")) {
		const src = s.getAttribute("src");
		if (src) { out.push(src); }
	}
	return {found: true, value: out};`

const tracksBody = `return {found: true, value: Array.from(el.querySelectorAll("track")).map(t => ({
		default: t.hasAttribute("default"),
		kind: t.getAttribute("kind") || "",
		label: t.getAttribute("label") || "",
		src: t.getAttribute("src") || "",
		srclang: t.getAttribute("srclang") || "",
	}))};`

const attributesBody = `return {found: true, value: {
		autoplay: el.autoplay,
		controls: el.controls,
		controlsList: el.getAttribute("controlslist") || "",
		crossOrigin: el.getAttribute("crossorigin") || "",
		disablePictureInPicture: el.hasAttribute("disablepictureinpicture"),
		disableRemotePlayback: el.hasAttribute("disableremoteplayback"),
		playsInline: el.hasAttribute("playsinline"),
		preload: el.getAttribute("preload") || "",
		muted: el.muted,
		loop: el.loop,
		poster: el.getAttribute("poster") || "",
		role: el.getAttribute("role") || "",
	}};`
