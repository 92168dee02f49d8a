package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregate_MobileFirstWithProbe(t *testing.T) {
	t.Parallel()

	mobile := &VideoObservation{
		Sources:    []string{"https://cdn.example.net/m.mp4", "https://cdn.example.net/m.webm"},
		CurrentSrc: "https://cdn.example.net/m.mp4",
		Probes: map[string]ProbeResult{
			"https://cdn.example.net/m.mp4": {Width: 720, Height: 1280, Codec: "h264", Duration: 12.5, HasAudio: false},
		},
		Tracks:     []Track{{Kind: "captions"}},
		Attributes: VideoAttributes{Loop: true, Muted: true, Autoplay: true},
		CDNDomain:  "example.net",
		Playing:    true,
	}
	desktop := &VideoObservation{
		Sources:    []string{"https://cdn.example.net/d.mp4"},
		CurrentSrc: "https://cdn.example.net/d.mp4",
		Probes:     map[string]ProbeResult{"https://cdn.example.net/d.mp4": {Width: 1920}},
	}

	rec := Aggregate(StageResults{
		URL:      "https://www.example.edu",
		FinalURL: "https://www.example.edu/",
		Mobile:   &ViewportCapture{Viewport: MobileViewport, Video: mobile, Iframes: []string{"https://player.vimeo.com/1"}},
		Desktop:  &ViewportCapture{Viewport: DesktopViewport, Video: desktop},
		Motion:   &MotionCheck{Viewport: MobileViewport, StillPlaying: false},
	})

	require.Equal(t, OutcomeSuccess, rec.Outcome)
	require.Empty(t, rec.RedirectedTo, "trailing slash is not a redirect")
	require.True(t, rec.AboveFoldMobile)
	require.True(t, rec.AboveFoldDesktop)
	require.Equal(t, "https://player.vimeo.com/1", rec.IframeSource)
	require.NotNil(t, rec.Video)
	require.Equal(t, "https://cdn.example.net/m.mp4", rec.Video.Source)
	require.Equal(t, 720, rec.Video.Probe.Width)
	require.Equal(t, 2, rec.Video.SourceCount)
	require.True(t, rec.Video.TrackFound)
	require.True(t, rec.SourcesDiffer)
	require.NotNil(t, rec.Motion)
}

func TestAggregate_SourcesDifferFlag(t *testing.T) {
	t.Parallel()

	same := func() *VideoObservation {
		return &VideoObservation{Sources: []string{"https://x.edu/v.mp4"}, CurrentSrc: "https://x.edu/v.mp4"}
	}
	rec := Aggregate(StageResults{
		URL:     "https://x.edu",
		Mobile:  &ViewportCapture{Video: same()},
		Desktop: &ViewportCapture{Video: same()},
	})
	require.False(t, rec.SourcesDiffer)

	row := rec.Row()
	require.Equal(t, "", row[columnIndex(t, "Mobile and Desktop Difference Src")])
}

func TestAggregate_DesktopFallbackAndMissingProbe(t *testing.T) {
	t.Parallel()

	desktop := &VideoObservation{
		Sources:    []string{"https://x.edu/a.mp4"},
		CurrentSrc: "https://x.edu/b.mp4",
		Probes:     map[string]ProbeResult{"https://x.edu/a.mp4": {Width: 10}},
	}
	rec := Aggregate(StageResults{URL: "https://x.edu", Desktop: &ViewportCapture{Video: desktop}})
	require.Nil(t, rec.Video, "no probe entry for the active source leaves video fields at default")
	require.False(t, rec.AboveFoldMobile)
	require.True(t, rec.AboveFoldDesktop)
	require.Equal(t, desktop, rec.VideoDesktop)
}

func TestAggregate_IframeSummaryIgnoresDesktop(t *testing.T) {
	t.Parallel()

	rec := Aggregate(StageResults{
		URL:     "https://x.edu",
		Mobile:  &ViewportCapture{},
		Desktop: &ViewportCapture{Iframes: []string{"https://player.vimeo.com/9"}},
	})
	require.Empty(t, rec.IframeSource)
	require.Equal(t, []string{"https://player.vimeo.com/9"}, rec.IframesDesktop)
}

func TestAggregate_NotFoundLeavesFieldsEmpty(t *testing.T) {
	t.Parallel()

	results := StageResults{URL: "https://gone.edu"}
	results.Fail(OutcomeNotFound, "mobile", "page not found (404)")
	results.Fail(OutcomeGeneralError, "release", "ignored")

	rec := Aggregate(results)
	row := rec.Row()
	require.Equal(t, OutcomeNotFound, rec.Outcome)
	require.Equal(t, "true", row[columnIndex(t, "Error - 404")])
	require.Equal(t, "false", row[columnIndex(t, "Unresolved")])
	require.Equal(t, "false", row[columnIndex(t, "General Error")])
	require.Equal(t, "", row[columnIndex(t, "SpeedyU - Name")])
	require.Equal(t, "", row[columnIndex(t, "Video Data - Desktop")])
	require.Equal(t, "", row[columnIndex(t, "Playing - Low Motion")])
}

func TestAggregate_RedirectedTo(t *testing.T) {
	t.Parallel()

	rec := Aggregate(StageResults{URL: "http://old.edu", FinalURL: "https://www.old.edu/home"})
	require.Equal(t, "https://www.old.edu/home", rec.RedirectedTo)
}

func TestMotionViewport(t *testing.T) {
	t.Parallel()

	_, ok := MotionViewport(StageResults{})
	require.False(t, ok)

	vp, ok := MotionViewport(StageResults{
		Mobile:  &ViewportCapture{Viewport: MobileViewport, Video: &VideoObservation{Playing: false}},
		Desktop: &ViewportCapture{Viewport: DesktopViewport, Video: &VideoObservation{Playing: true}},
	})
	require.True(t, ok)
	require.Equal(t, DesktopViewport, vp)

	vp, ok = MotionViewport(StageResults{
		Mobile:  &ViewportCapture{Viewport: MobileViewport, Video: &VideoObservation{Playing: true}},
		Desktop: &ViewportCapture{Viewport: DesktopViewport, Video: &VideoObservation{Playing: true}},
	})
	require.True(t, ok)
	require.Equal(t, MobileViewport, vp)
}

func columnIndex(t *testing.T, name string) int {
	t.Helper()
	for i, h := range Header {
		if h == name {
			return i
		}
	}
	t.Fatalf("unknown column %q", name)
	return -1
}
