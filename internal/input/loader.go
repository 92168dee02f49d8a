// Package input turns the scan command's positional argument into the ordered,
// deduplicated list of URLs to scan.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// ErrNoURLs is returned when the input yields nothing to scan.
var ErrNoURLs = errors.New("no urls to scan")

// List is the loaded input.
type List struct {
	URLs []string
	// Invalid holds lines that were not http(s) URLs, in file order.
	Invalid []string
}

// Requests wraps every URL in a ScanRequest.
func (l List) Requests() []crawler.ScanRequest {
	out := make([]crawler.ScanRequest, 0, len(l.URLs))
	for _, u := range l.URLs {
		out = append(out, crawler.ScanRequest{URL: u})
	}
	return out
}

// Load interprets arg as a single http(s) URL, or else as the path of a file
// with one URL per line. Blank lines and lines starting with # are skipped.
func Load(arg string) (List, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return List{}, errors.New("input is required")
	}
	if isURL(arg) {
		u, err := crawler.NormalizeURL(arg)
		if err != nil {
			return List{}, fmt.Errorf("parse input url: %w", err)
		}
		return List{URLs: []string{u}}, nil
	}
	return loadFile(arg)
}

func loadFile(path string) (List, error) {
	// #nosec G304 -- the input file is chosen by the operator.
	f, err := os.Open(path)
	if err != nil {
		return List{}, fmt.Errorf("open url file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		list List
		seen = make(map[string]struct{})
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := crawler.NormalizeURL(line)
		if err != nil {
			list.Invalid = append(list.Invalid, line)
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		list.URLs = append(list.URLs, u)
	}
	if err := scanner.Err(); err != nil {
		return List{}, fmt.Errorf("read url file: %w", err)
	}
	if len(list.URLs) == 0 {
		return list, fmt.Errorf("%s: %w", path, ErrNoURLs)
	}
	return list, nil
}

func isURL(arg string) bool {
	lower := strings.ToLower(arg)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
