package crawler

import "strings"

// DefaultIframeBlocklist lists ad, tracking, analytics, and chat-widget
// fragments whose iframes are never reported as hero media.
var DefaultIframeBlocklist = []string{
	"googletagmanager",
	"doubleclick",
	"adsrvr",
	"facebook",
	"force.com",
	"google.com",
	"admithub",
	"hubspot",
	"WixWorker",
	"syndicatedsearch",
	"cookiebot",
	"sharethis",
	"unibuddy",
}

// IframeBlocklist matches iframe sources by case-insensitive substring.
type IframeBlocklist struct {
	patterns []string
}

// NewIframeBlocklist builds a blocklist from the given fragments, skipping
// blanks and duplicates. A nil or empty list blocks nothing.
func NewIframeBlocklist(patterns []string) *IframeBlocklist {
	b := &IframeBlocklist{}
	seen := make(map[string]struct{}, len(patterns))
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		b.patterns = append(b.patterns, value)
	}
	return b
}

// IsBlocked reports whether src contains any blocked fragment.
func (b *IframeBlocklist) IsBlocked(src string) bool {
	if b == nil {
		return false
	}
	src = strings.ToLower(src)
	for _, pattern := range b.patterns {
		if strings.Contains(src, pattern) {
			return true
		}
	}
	return false
}
