// Package probe extracts container and stream metadata from media URLs with
// ffprobe, isolated behind a bounded worker pool so a slow probe never stalls
// other scans.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

const defaultTimeout = 30 * time.Second

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFProbe shells out to the ffprobe binary for one URL at a time.
type FFProbe struct {
	binary  string
	timeout time.Duration
	run     Runner
}

// NewFFProbe builds an FFProbe. An empty binary means "ffprobe" on PATH; a nil
// runner uses os/exec.
func NewFFProbe(binary string, timeout time.Duration, run Runner) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if run == nil {
		run = execRunner
	}
	return &FFProbe{binary: binary, timeout: timeout, run: run}
}

// Probe analyzes url. Any failure is reported as a Failed result.
func (f *FFProbe) Probe(ctx context.Context, url string) crawler.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := f.run(ctx, f.binary, Args(url)...)
	if err != nil {
		return failed(url, fmt.Errorf("run ffprobe: %w", err))
	}
	result, err := ParseOutput(out)
	if err != nil {
		return failed(url, err)
	}
	return result
}

// Args returns the ffprobe arguments used for url.
func Args(url string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=size,duration,bit_rate:stream=codec_name,codec_type,width,height,r_frame_rate,sample_fmt,channels",
		"-of", "json",
		url,
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Size     string `json:"size"`
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// ParseOutput decodes ffprobe's JSON. The first video stream supplies the
// geometry, codec, and frame rate; any audio stream sets HasAudio.
func ParseOutput(data []byte) (crawler.ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return crawler.ProbeResult{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	result := crawler.ProbeResult{
		Duration: parseFloat(out.Format.Duration),
		BitRate:  parseInt(out.Format.BitRate),
		Size:     parseInt(out.Format.Size),
	}
	videoSeen := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if videoSeen {
				continue
			}
			videoSeen = true
			result.Width = s.Width
			result.Height = s.Height
			result.Codec = s.CodecName
			result.FrameRate = parseFrameRate(s.RFrameRate)
		case "audio":
			result.HasAudio = true
		}
	}
	return result, nil
}

// parseFrameRate turns "30000/1001" into 29.97.
func parseFrameRate(raw string) float64 {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		return math.Round(parseFloat(raw)*100) / 100
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return math.Round(n/d*100) / 100
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return int64(parseFloat(raw))
	}
	return v
}

func failed(url string, err error) crawler.ProbeResult {
	return crawler.ProbeResult{URL: url, Failed: true, Error: err.Error()}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- the binary comes from configuration and the URL is passed as a single argument.
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}
