// Package speedyu looks up Lighthouse and ranking data for a site from the
// SpeedyU API.
package speedyu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// DefaultSiteBaseURL prefixes the public SpeedyU page for a site.
const DefaultSiteBaseURL = "https://speedyu.bravery.co/site/"

const fields = "Name,CurrentTotal,Rank,City,State,Country,Control," +
	"LighthousePerformance,LighthouseAccessibility,LighthouseBestPractices,LighthouseSeo,LighthouseTotalByteWeight"

// Config controls the client.
type Config struct {
	APIURL        string
	APIKey        string
	SiteBaseURL   string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	// Country, when set, drops results whose Country differs.
	Country string
}

// Secrets mirrors the legacy secrets file.
type Secrets struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

// LoadSecrets reads the JSON secrets file at path.
func LoadSecrets(path string) (Secrets, error) {
	// #nosec G304 -- path is operator supplied configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return Secrets{}, fmt.Errorf("read secrets file: %w", err)
	}
	var s Secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return Secrets{}, fmt.Errorf("decode secrets file: %w", err)
	}
	return s, nil
}

// Client implements crawler.MetricsClient.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	retry   backoff
	logger  *zap.Logger
}

// New builds a Client. A client without an API URL or key is disabled and
// reports every site as absent.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SiteBaseURL == "" {
		cfg.SiteBaseURL = DefaultSiteBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		retry:   newBackoff(cfg.MaxAttempts, cfg.RetryDelay),
		logger:  logger,
	}
}

// Enabled reports whether the client has credentials to query with.
func (c *Client) Enabled() bool {
	return c.cfg.APIURL != "" && c.cfg.APIKey != ""
}

type siteRow struct {
	Name                      string  `json:"Name"`
	CurrentTotal              float64 `json:"CurrentTotal"`
	Rank                      int     `json:"Rank"`
	City                      string  `json:"City"`
	State                     string  `json:"State"`
	Country                   string  `json:"Country"`
	Control                   string  `json:"Control"`
	LighthousePerformance     float64 `json:"LighthousePerformance"`
	LighthouseAccessibility   float64 `json:"LighthouseAccessibility"`
	LighthouseBestPractices   float64 `json:"LighthouseBestPractices"`
	LighthouseSeo             float64 `json:"LighthouseSeo"`
	LighthouseTotalByteWeight int64   `json:"LighthouseTotalByteWeight"`
}

type listResponse struct {
	List []siteRow `json:"list"`
}

// Lookup returns the metrics for siteURL, or nil when the site is unknown, the
// client is disabled, or the country filter excludes it.
func (c *Client) Lookup(ctx context.Context, siteURL string) (*crawler.MetricsResult, error) {
	if !c.Enabled() {
		return nil, nil
	}
	var (
		resp    listResponse
		attempt int
	)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
		err := c.fetch(ctx, siteURL, &resp)
		if err == nil {
			break
		}
		attempt++
		if !c.retry.retryable(ctx, err, attempt) {
			return nil, err
		}
		c.logger.Debug("retrying speedyu lookup",
			zap.String("url", siteURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if werr := c.retry.wait(ctx, attempt); werr != nil {
			return nil, fmt.Errorf("speedyu lookup canceled: %w", werr)
		}
	}
	if len(resp.List) == 0 {
		return nil, nil
	}
	row := resp.List[0]
	if c.cfg.Country != "" && !strings.EqualFold(row.Country, c.cfg.Country) {
		return nil, nil
	}
	return c.toResult(siteURL, row), nil
}

func (c *Client) fetch(ctx context.Context, siteURL string, out *listResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(siteURL), nil)
	if err != nil {
		return fmt.Errorf("build speedyu request: %w: %w", err, errPermanent)
	}
	req.Header.Set("xc-token", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("speedyu request: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("speedyu returned status %d: %w", res.StatusCode, errPermanent)
		}
		return fmt.Errorf("speedyu returned status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode speedyu response: %w: %w", err, errPermanent)
	}
	return nil
}

func (c *Client) requestURL(siteURL string) string {
	q := url.Values{}
	q.Set("where", fmt.Sprintf("(Url,eq,%s)~or(Url,eq,%s/)", siteURL, siteURL))
	q.Set("fields", fields)
	sep := "?"
	if strings.Contains(c.cfg.APIURL, "?") {
		sep = "&"
	}
	return c.cfg.APIURL + sep + q.Encode()
}

func (c *Client) toResult(siteURL string, row siteRow) *crawler.MetricsResult {
	host := strings.TrimPrefix(strings.TrimPrefix(siteURL, "https://"), "http://")
	return &crawler.MetricsResult{
		Link:          c.cfg.SiteBaseURL + host,
		Name:          row.Name,
		City:          row.City,
		State:         row.State,
		Country:       row.Country,
		Type:          row.Control,
		Score:         percent(row.CurrentTotal),
		Rank:          row.Rank,
		Performance:   percent(row.LighthousePerformance),
		Accessibility: percent(row.LighthouseAccessibility),
		BestPractices: percent(row.LighthouseBestPractices),
		SEO:           percent(row.LighthouseSeo),
		TotalWeight:   row.LighthouseTotalByteWeight,
	}
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
