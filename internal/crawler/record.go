package crawler

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Header is the fixed, ordered column list of the output file.
var Header = []string{
	"URL",
	"General Error",
	"Unresolved",
	"Error - 404",
	"Redirected To",
	"Above Fold - Mobile",
	"Above Fold - Desktop",
	"Iframe Source",
	"Video Source",
	"Self-Hosted",
	"CDN Domain",
	"Playing",
	"CC or Descriptive Track Found",
	"Mobile and Desktop Difference Src",
	"Width",
	"Height",
	"Bitrate",
	"Audio Present",
	"Codec",
	"Duration",
	"Framerate",
	"File Size",
	"Loop",
	"Muted",
	"Preload",
	"Autoplay",
	"Poster",
	"Controls",
	"Playsinline",
	"Number of Video Sources",
	"Controlslist",
	"Crossorigin",
	"Disable Picture-in-Picture",
	"Disable Remote Playback",
	"Role",
	"SpeedyU - Link",
	"SpeedyU - Name",
	"SpeedyU - City",
	"SpeedyU - State",
	"SpeedyU - Country",
	"SpeedyU - Type",
	"SpeedyU - Score",
	"SpeedyU - Rank",
	"LH - Performance",
	"LH - Accessibility",
	"LH - BestPractices",
	"LH - SEO",
	"LH - Total Weight",
	"Playing - Low Motion",
	"Iframe Sources - Mobile",
	"Iframe Sources - Desktop",
	"Video Data - Mobile",
	"Video Data - Desktop",
}

// VideoSummary is the flattened description of the active video source.
type VideoSummary struct {
	Source      string
	SelfHosted  bool
	CDNDomain   string
	SourceCount int
	TrackFound  bool
	Attributes  VideoAttributes
	Probe       ProbeResult
}

// SiteRecord is the finalized, immutable output for one scan request.
type SiteRecord struct {
	URL              string
	Outcome          Outcome
	RedirectedTo     string
	AboveFoldMobile  bool
	AboveFoldDesktop bool
	IframeSource     string
	Video            *VideoSummary
	SourcesDiffer    bool
	Metrics          *MetricsResult
	// Motion is nil when the reduced-motion check did not run.
	Motion         *MotionCheck
	IframesMobile  []string
	IframesDesktop []string
	VideoMobile    *VideoObservation
	VideoDesktop   *VideoObservation
}

// NewSiteRecord returns the default record for url.
func NewSiteRecord(url string) SiteRecord {
	return SiteRecord{URL: url, Outcome: OutcomeSuccess}
}

// Row renders the record in Header order. Unpopulated optional values are
// written as empty cells and structured values are JSON encoded.
func (r SiteRecord) Row() []string {
	row := make([]string, 0, len(Header))
	row = append(row,
		r.URL,
		formatBool(r.Outcome == OutcomeGeneralError),
		formatBool(r.Outcome == OutcomeUnresolved),
		formatBool(r.Outcome == OutcomeNotFound),
		r.RedirectedTo,
		formatBool(r.AboveFoldMobile),
		formatBool(r.AboveFoldDesktop),
		r.IframeSource,
	)
	row = append(row, r.videoColumns()...)
	row = append(row, r.metricsColumns()...)
	if r.Motion != nil {
		row = append(row, formatBool(r.Motion.StillPlaying))
	} else {
		row = append(row, "")
	}
	row = append(row,
		encodeList(r.IframesMobile),
		encodeList(r.IframesDesktop),
		encodeObservation(r.VideoMobile),
		encodeObservation(r.VideoDesktop),
	)
	return row
}

func (r SiteRecord) videoColumns() []string {
	v := r.Video
	if v == nil {
		v = &VideoSummary{}
	}
	cols := []string{
		v.Source,
		formatBool(v.SelfHosted),
		v.CDNDomain,
		optionalBool(r.Motion != nil, true),
	}
	if r.Video == nil {
		cols = append(cols, "", optionalBool(r.SourcesDiffer, true))
		cols = append(cols, make([]string, 8)...)
		return append(cols, make([]string, 13)...)
	}
	cols = append(cols, formatBool(v.TrackFound), optionalBool(r.SourcesDiffer, true))
	cols = append(cols, probeColumns(v.Probe)...)
	a := v.Attributes
	return append(cols,
		formatBool(a.Loop),
		formatBool(a.Muted),
		a.Preload,
		formatBool(a.Autoplay),
		a.Poster,
		formatBool(a.Controls),
		formatBool(a.PlaysInline),
		strconv.Itoa(v.SourceCount),
		a.ControlsList,
		a.CrossOrigin,
		formatBool(a.DisablePictureInPicture),
		formatBool(a.DisableRemotePlayback),
		a.Role,
	)
}

func probeColumns(p ProbeResult) []string {
	if p.Failed {
		return make([]string, 8)
	}
	return []string{
		formatInt(int64(p.Width)),
		formatInt(int64(p.Height)),
		formatInt(p.BitRate),
		formatBool(p.HasAudio),
		p.Codec,
		formatFloat(p.Duration),
		formatFloat(p.FrameRate),
		formatInt(p.Size),
	}
}

func (r SiteRecord) metricsColumns() []string {
	m := r.Metrics
	if m == nil {
		return make([]string, 13)
	}
	return []string{
		m.Link,
		m.Name,
		m.City,
		m.State,
		m.Country,
		m.Type,
		strconv.Itoa(m.Score),
		strconv.Itoa(m.Rank),
		strconv.Itoa(m.Performance),
		strconv.Itoa(m.Accessibility),
		strconv.Itoa(m.BestPractices),
		strconv.Itoa(m.SEO),
		strconv.FormatInt(m.TotalWeight, 10),
	}
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

// optionalBool renders v only when set is true, so flags that are only ever
// raised stay blank by default.
func optionalBool(set, v bool) string {
	if !set {
		return ""
	}
	return strconv.FormatBool(v)
}

func formatInt(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return mustJSON(values)
}

func encodeObservation(obs *VideoObservation) string {
	if obs == nil {
		return ""
	}
	return mustJSON(obs)
}

func mustJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
