package crawler

import (
	"context"
	"io"
	"time"
)

// Browser launches isolated browser sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated browser process owned by a single scan.
type Session interface {
	OpenPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is a browsing context (tab) inside a session.
type Page interface {
	// Navigate loads url and waits for the document to become interactive
	// plus the configured settle delay.
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Videos(ctx context.Context) ([]VideoElement, error)
	Iframes(ctx context.Context) ([]IframeElement, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// VideoElement exposes the properties of a <video> the selector needs.
// BoundingBox returns nil when the element is not rendered.
type VideoElement interface {
	BoundingBox(ctx context.Context) (*Box, error)
	IsPlaying(ctx context.Context) (bool, error)
	CurrentSrc(ctx context.Context) (string, error)
	// Sources returns the raw src attribute followed by every child
	// <source src>, unresolved.
	Sources(ctx context.Context) ([]string, error)
	Tracks(ctx context.Context) ([]Track, error)
	Attributes(ctx context.Context) (VideoAttributes, error)
}

// IframeElement exposes the properties of an <iframe> the selector needs.
type IframeElement interface {
	Src(ctx context.Context) (string, error)
	BoundingBox(ctx context.Context) (*Box, error)
}

// Prober returns stream metadata for media URLs. Failures are reported as
// ProbeResult.Failed rather than errors.
type Prober interface {
	ProbeAll(ctx context.Context, urls []string) map[string]ProbeResult
}

// MetricsClient looks up the performance record for a site. A nil result with
// a nil error means no record exists.
type MetricsClient interface {
	Lookup(ctx context.Context, siteURL string) (*MetricsResult, error)
}

// RecordSink appends finalized records to the output.
type RecordSink interface {
	Append(ctx context.Context, rec SiteRecord) error
	Close() error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Queue provides FIFO semantics for scan requests.
type Queue interface {
	Enqueue(ctx context.Context, req ScanRequest) error
	Dequeue(ctx context.Context) (ScanRequest, error)
	Close()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
