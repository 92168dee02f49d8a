// Package storage selects the artifact store screenshots are written to.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/gcs"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/local"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/storage/memory"
)

// Supported backends.
const (
	BackendNone   = "none"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config picks and configures a backend.
type Config struct {
	Backend string
	Local   local.Config
	GCS     gcs.Config
}

// NewBlobStore builds the configured store. The returned closer is never nil.
// BackendNone yields a nil store, which disables screenshots.
func NewBlobStore(ctx context.Context, cfg Config) (crawler.BlobStore, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nopCloser{}, nil
	case BackendLocal:
		store, err := local.New(cfg.Local)
		if err != nil {
			return nil, nopCloser{}, fmt.Errorf("local blob store: %w", err)
		}
		return store, nopCloser{}, nil
	case BackendGCS:
		store, err := gcs.Open(ctx, cfg.GCS)
		if err != nil {
			return nil, nopCloser{}, fmt.Errorf("gcs blob store: %w", err)
		}
		return store, store, nil
	case BackendMemory:
		return memory.NewBlobStore(), nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
