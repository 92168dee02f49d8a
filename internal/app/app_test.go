package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/config"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Diagnostics = ""
	cfg.Metrics.SecretsFile = ""
	cfg.Storage.Backend = "memory"
	cfg.Scan.MaxConcurrent = 3
	cfg.Probe.Workers = 2
	return cfg
}

func TestAppRunPersistsEveryRecordAndClosesSessions(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	browser := &stubBrowser{}
	var board bytes.Buffer
	a, err := New(context.Background(), cfg, Options{
		Browser:  browser,
		Analyzer: stubAnalyzer{},
		BoardOut: &lockedWriter{w: &board},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	reqs := []crawler.ScanRequest{
		{URL: "https://a.edu"},
		{URL: "https://b.edu"},
		{URL: "https://missing.edu"},
		{URL: "https://c.edu"},
	}
	sum, err := a.Run(context.Background(), reqs)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	require.Equal(t, 4, sum.Total)
	require.Equal(t, 4, sum.Persisted)
	require.Equal(t, 3, sum.Outcomes[crawler.OutcomeSuccess])
	require.Equal(t, 1, sum.Outcomes[crawler.OutcomeUnresolved])

	require.Equal(t, int64(4), browser.opened.Load())
	require.Equal(t, int64(4), browser.closed.Load())

	f, err := os.Open(cfg.CSVPath())
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5, "header plus one row per site")

	summary := a.Board().Summary()
	require.Equal(t, 4, summary.Completed)
	require.NotEmpty(t, board.String())
}

func TestAppRunCanceledPersistsNothing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{Browser: &stubBrowser{}, Analyzer: stubAnalyzer{}}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := a.Run(ctx, []crawler.ScanRequest{{URL: "https://a.edu"}, {URL: "https://b.edu"}})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, sum.Persisted)
	require.NoError(t, a.Close())
}

func TestAppRunAppliesBuiltInIframeBlocklist(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.Empty(t, cfg.Scan.IframeBlocklist)
	browser := &stubBrowser{iframes: []string{"https://www.googletagmanager.com/ns.html?id=GTM-X"}}
	a, err := New(context.Background(), cfg, Options{Browser: browser, Analyzer: stubAnalyzer{}}, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Run(context.Background(), []crawler.ScanRequest{{URL: "https://a.edu"}})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	row := readRow(t, cfg.CSVPath())
	require.Empty(t, row["Iframe Source"])
	require.Equal(t, "false", row["Above Fold - Mobile"])
}

func TestAppRunConfiguredBlocklistReplacesBuiltIn(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Scan.IframeBlocklist = []string{"vimeo"}
	browser := &stubBrowser{iframes: []string{
		"https://player.vimeo.com/video/1",
		"https://www.googletagmanager.com/ns.html?id=GTM-X",
	}}
	a, err := New(context.Background(), cfg, Options{Browser: browser, Analyzer: stubAnalyzer{}}, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Run(context.Background(), []crawler.ScanRequest{{URL: "https://a.edu"}})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	row := readRow(t, cfg.CSVPath())
	require.Equal(t, "https://www.googletagmanager.com/ns.html?id=GTM-X", row["Iframe Source"])
	require.Equal(t, "true", row["Above Fold - Mobile"])
}

// readRow returns the single data row of the record file keyed by header.
func readRow(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	row := make(map[string]string, len(rows[0]))
	for i, name := range rows[0] {
		row[name] = rows[1][i]
	}
	return row
}

func TestNewRejectsUnknownStorageBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "s3"
	_, err := New(context.Background(), cfg, Options{Browser: &stubBrowser{}, Analyzer: stubAnalyzer{}}, zap.NewNop())
	require.ErrorContains(t, err, "unknown storage backend")
}

func TestNewMetricsClientReadsSecretsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_key":"k","api_url":"https://api.example.com/sites"}`), 0o600))

	client := newMetricsClient(config.MetricsConfig{SecretsFile: path}, nil, zap.NewNop())
	require.True(t, client.Enabled())

	missing := newMetricsClient(config.MetricsConfig{SecretsFile: filepath.Join(t.TempDir(), "none")}, nil, zap.NewNop())
	require.False(t, missing.Enabled())

	explicit := newMetricsClient(config.MetricsConfig{APIURL: "https://api.example.com", APIKey: "x"}, nil, zap.NewNop())
	require.True(t, explicit.Enabled())
}

type stubBrowser struct {
	opened  atomic.Int64
	closed  atomic.Int64
	iframes []string
}

func (b *stubBrowser) NewSession(context.Context) (crawler.Session, error) {
	b.opened.Add(1)
	return &stubSession{browser: b}, nil
}

type stubSession struct {
	browser *stubBrowser
	once    sync.Once
}

func (s *stubSession) OpenPage(context.Context, crawler.PageOptions) (crawler.Page, error) {
	return &stubPage{iframes: s.browser.iframes}, nil
}

func (s *stubSession) Close() error {
	s.once.Do(func() { s.browser.closed.Add(1) })
	return nil
}

type stubPage struct {
	url     string
	iframes []string
}

func (p *stubPage) Navigate(_ context.Context, url string) error {
	if strings.Contains(url, "missing") {
		return errors.New("page load failed: net::ERR_NAME_NOT_RESOLVED")
	}
	p.url = url
	return nil
}

func (p *stubPage) URL(context.Context) (string, error) {
	return p.url, nil
}

func (p *stubPage) Videos(context.Context) ([]crawler.VideoElement, error) {
	return nil, nil
}

func (p *stubPage) Iframes(context.Context) ([]crawler.IframeElement, error) {
	out := make([]crawler.IframeElement, 0, len(p.iframes))
	for _, src := range p.iframes {
		out = append(out, stubIframe(src))
	}
	return out, nil
}

type stubIframe string

func (f stubIframe) Src(context.Context) (string, error) {
	return string(f), nil
}

func (f stubIframe) BoundingBox(context.Context) (*crawler.Box, error) {
	return &crawler.Box{Y: 40, Width: 390, Height: 220}, nil
}

func (p *stubPage) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *stubPage) Close() error {
	return nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Probe(_ context.Context, url string) crawler.ProbeResult {
	return crawler.ProbeResult{URL: url}
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
