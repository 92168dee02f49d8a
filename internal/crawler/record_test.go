package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSiteRecordRowMatchesHeader(t *testing.T) {
	t.Parallel()

	require.Len(t, Header, 53)
	require.Len(t, NewSiteRecord("https://x.edu").Row(), len(Header))

	full := SiteRecord{
		URL:     "https://x.edu",
		Outcome: OutcomeSuccess,
		Video: &VideoSummary{
			Source:      "https://x.edu/v.mp4",
			SelfHosted:  true,
			SourceCount: 1,
			Probe:       ProbeResult{Width: 1920, Height: 1080, BitRate: 4_000_000, Codec: "h264", Duration: 30.03, FrameRate: 29.97, Size: 15_000_000},
			Attributes:  VideoAttributes{Preload: "auto", Role: "presentation"},
		},
		Metrics:       &MetricsResult{Name: "X University", Score: 87, TotalWeight: 3_145_728},
		Motion:        &MotionCheck{StillPlaying: true},
		IframesMobile: []string{"https://player.vimeo.com/1"},
		VideoMobile:   &VideoObservation{Sources: []string{"https://x.edu/v.mp4"}},
	}
	row := full.Row()
	require.Len(t, row, len(Header))
	require.Equal(t, "https://x.edu/v.mp4", row[columnIndex(t, "Video Source")])
	require.Equal(t, "true", row[columnIndex(t, "Self-Hosted")])
	require.Equal(t, "true", row[columnIndex(t, "Playing")])
	require.Equal(t, "true", row[columnIndex(t, "Playing - Low Motion")])
	require.Equal(t, "1920", row[columnIndex(t, "Width")])
	require.Equal(t, "29.97", row[columnIndex(t, "Framerate")])
	require.Equal(t, "auto", row[columnIndex(t, "Preload")])
	require.Equal(t, "1", row[columnIndex(t, "Number of Video Sources")])
	require.Equal(t, "presentation", row[columnIndex(t, "Role")])
	require.Equal(t, "X University", row[columnIndex(t, "SpeedyU - Name")])
	require.Equal(t, "87", row[columnIndex(t, "SpeedyU - Score")])
	require.Equal(t, "3145728", row[columnIndex(t, "LH - Total Weight")])

	var iframes []string
	require.NoError(t, json.Unmarshal([]byte(row[columnIndex(t, "Iframe Sources - Mobile")]), &iframes))
	require.Equal(t, []string{"https://player.vimeo.com/1"}, iframes)
	require.Contains(t, row[columnIndex(t, "Video Data - Mobile")], `"src":["https://x.edu/v.mp4"]`)
}

func TestSiteRecordRowFailedProbeLeavesStreamColumnsBlank(t *testing.T) {
	t.Parallel()

	rec := SiteRecord{
		URL:   "https://x.edu",
		Video: &VideoSummary{Source: "https://x.edu/v.mp4", SourceCount: 2, Probe: ProbeResult{Failed: true}},
	}
	row := rec.Row()
	require.Equal(t, "", row[columnIndex(t, "Width")])
	require.Equal(t, "", row[columnIndex(t, "Codec")])
	require.Equal(t, "2", row[columnIndex(t, "Number of Video Sources")])
}
