package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL trims whitespace and a single trailing slash so the same site
// listed twice is scanned once.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", trimmed)
	}
	return strings.TrimSuffix(trimmed, "/"), nil
}

// ResolveURL resolves ref against base. Absolute references are returned as
// is; protocol-relative ones inherit the base scheme.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// IsSelfHosted reports whether every source shares the page's hostname. An
// unparsable source makes the set not self-hosted.
func IsSelfHosted(pageURL string, sources []string) bool {
	page, err := url.Parse(pageURL)
	if err != nil || len(sources) == 0 {
		return false
	}
	for _, src := range sources {
		u, err := url.Parse(src)
		if err != nil || !strings.EqualFold(u.Hostname(), page.Hostname()) {
			return false
		}
	}
	return true
}

// CDNDomain returns the last two labels of the source host, or the full host
// when it has two labels or fewer. It returns "" when src cannot be parsed.
func CDNDomain(src string) string {
	u, err := url.Parse(src)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) <= 2 {
		return u.Hostname()
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// SameSite compares two URLs ignoring a trailing slash.
func SameSite(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
