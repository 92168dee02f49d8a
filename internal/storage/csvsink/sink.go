// Package csvsink appends scan records to the results CSV.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("csv sink closed")

// Sink implements crawler.RecordSink. Each Append writes and flushes one row
// so a crash loses at most the record in flight.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
	closed bool
}

// New truncates the file at path, creating parent directories as needed, and
// writes the header row.
func New(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	// #nosec G304 -- path is operator supplied configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(crawler.Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flush header: %w", err)
	}
	return &Sink{file: f, writer: w}, nil
}

// Append writes rec as a single row.
func (s *Sink) Append(_ context.Context, rec crawler.SiteRecord) error {
	row := rec.Row()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("write row for %s: %w", rec.URL, err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush row for %s: %w", rec.URL, err)
	}
	s.rows++
	return nil
}

// Rows reports how many records have been written.
func (s *Sink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Close flushes and closes the file. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Flush()
	flushErr := s.writer.Error()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close results file: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("flush results file: %w", flushErr)
	}
	return nil
}
