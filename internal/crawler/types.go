package crawler

import (
	"errors"
	"time"
)

// Sentinel errors surfaced by collaborators so the classifier does not have to
// rely on message text alone.
var (
	ErrNotFound      = errors.New("page not found (404)")
	ErrUnresolved    = errors.New("host could not be resolved")
	ErrSessionClosed = errors.New("browser session closed")
	ErrQueueClosed   = errors.New("queue closed")
)

// Outcome is the terminal classification of a single scan.
type Outcome string

// Supported scan outcomes.
const (
	OutcomeSuccess      Outcome = "success"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeUnresolved   Outcome = "unresolved"
	OutcomeGeneralError Outcome = "general_error"
)

// ScanRequest is one normalized, deduplicated URL queued for scanning.
type ScanRequest struct {
	URL      string
	Enqueued time.Time
}

// Viewport describes the emulated device for a browsing context.
type Viewport struct {
	Name   string
	Width  int
	Height int
	Mobile bool
}

// Default viewports used for the capture stages.
var (
	MobileViewport  = Viewport{Name: "mobile", Width: 390, Height: 800, Mobile: true}
	DesktopViewport = Viewport{Name: "desktop", Width: 1440, Height: 900}
)

// PageOptions configures a browsing context opened inside a session.
type PageOptions struct {
	Viewport      Viewport
	ReducedMotion bool
}

// Box is an element's bounding rectangle in CSS pixels relative to the viewport.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// VideoAttributes is the attribute snapshot of the selected video element.
type VideoAttributes struct {
	Autoplay                bool   `json:"autoplay"`
	Controls                bool   `json:"controls"`
	ControlsList            string `json:"controlsList"`
	CrossOrigin             string `json:"crossOrigin"`
	DisablePictureInPicture bool   `json:"disablePictureInPicture"`
	DisableRemotePlayback   bool   `json:"disableRemotePlayback"`
	PlaysInline             bool   `json:"playsInline"`
	Preload                 string `json:"preload"`
	Muted                   bool   `json:"muted"`
	Loop                    bool   `json:"loop"`
	Poster                  string `json:"poster"`
	Role                    string `json:"role"`
}

// Track is a <track> child of a video element.
type Track struct {
	Default bool   `json:"default"`
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Src     string `json:"src"`
	SrcLang string `json:"srclang"`
}

// ProbeResult is the stream/container metadata for one media URL. Failed marks
// a source the prober could not analyze; the other fields are then zero.
type ProbeResult struct {
	URL       string  `json:"url,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	BitRate   int64   `json:"bit_rate,omitempty"`
	Size      int64   `json:"size,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
	Codec     string  `json:"codec,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	HasAudio  bool    `json:"has_audio,omitempty"`
	Failed    bool    `json:"error,omitempty"`
	Error     string  `json:"message,omitempty"`
}

// VideoObservation is the selector's description of the representative video
// for one viewport.
type VideoObservation struct {
	Sources    []string               `json:"src"`
	Probes     map[string]ProbeResult `json:"srcMetadata,omitempty"`
	CurrentSrc string                 `json:"currentSrc"`
	Attributes VideoAttributes        `json:"attrs"`
	Tracks     []Track                `json:"tracks"`
	AboveFold  bool                   `json:"isInInitialViewport"`
	Playing    bool                   `json:"playing"`
	SelfHosted bool                   `json:"selfHosted"`
	CDNDomain  string                 `json:"cdnDomain,omitempty"`
}

// MetricsResult is the third-party performance record for a site.
type MetricsResult struct {
	Link          string `json:"link"`
	Name          string `json:"name"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Type          string `json:"type"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
	Performance   int    `json:"performance"`
	Accessibility int    `json:"accessibility"`
	BestPractices int    `json:"bestPractices"`
	SEO           int    `json:"seo"`
	TotalWeight   int64  `json:"totalWeight"`
}

// ViewportCapture is the result of one capture stage (mobile or desktop).
type ViewportCapture struct {
	Viewport      Viewport
	FinalURL      string
	Video         *VideoObservation
	Iframes       []string
	ScreenshotURI string
}

// HasMedia reports whether anything above the fold was found for the viewport.
func (c *ViewportCapture) HasMedia() bool {
	return c != nil && (c.Video != nil || len(c.Iframes) > 0)
}

// MotionCheck records the reduced-motion re-scan.
type MotionCheck struct {
	Viewport     Viewport
	StillPlaying bool
}

// Failure is the classified terminal error of a scan.
type Failure struct {
	Outcome Outcome
	Stage   string
	Message string
}

// StageResults collects the explicit output of every stage of one scan. The
// aggregator is the only code that turns it into a SiteRecord.
type StageResults struct {
	URL      string
	FinalURL string
	Failure  *Failure
	Mobile   *ViewportCapture
	Desktop  *ViewportCapture
	Metrics  *MetricsResult
	Motion   *MotionCheck
}

// Fail records the first terminal failure; later calls are ignored so the
// outcome is set exactly once.
func (r *StageResults) Fail(outcome Outcome, stage, message string) {
	if r.Failure != nil {
		return
	}
	r.Failure = &Failure{Outcome: outcome, Stage: stage, Message: message}
}
