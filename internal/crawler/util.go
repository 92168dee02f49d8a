package crawler

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ScreenshotName builds the blob path for a viewport screenshot, e.g.
// "screenshots/www.example.edu_admissions-mobile.png".
func ScreenshotName(prefix, rawURL string, vp Viewport) string {
	base := safeBasename(rawURL)
	name := fmt.Sprintf("%s-%s.png", base, vp.Name)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func safeBasename(raw string) string {
	s := strings.TrimPrefix(raw, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.ReplaceAll(s, "/", "_")
	s = invalidFilenameChars.ReplaceAllString(s, "_")
	if s == "" {
		return hashURL(raw)[:16]
	}
	return s
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
