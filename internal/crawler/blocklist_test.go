package crawler

import "testing"

func TestIframeBlocklist(t *testing.T) {
	t.Run("default fragments", func(t *testing.T) {
		bl := NewIframeBlocklist(DefaultIframeBlocklist)
		cases := []struct {
			src     string
			blocked bool
		}{
			{"https://www.googletagmanager.com/ns.html?id=GTM-1", true},
			{"https://static.wixworker.com/frame", true},
			{"https://www.youtube.com/embed/abc", false},
			{"https://player.vimeo.com/video/123", false},
			{"https://calendar.google.com/embed", true},
			{"https://site.wixsite.com/_partials/WixWorker.html", true},
			{"HTTPS://WWW.GOOGLETAGMANAGER.COM/ns.html", true},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.src); got != tc.blocked {
				t.Fatalf("src %q blocked=%v, want %v", tc.src, got, tc.blocked)
			}
		}
	})

	t.Run("blank and duplicate patterns", func(t *testing.T) {
		bl := NewIframeBlocklist([]string{"", "  ", "ads", "ADS"})
		if len(bl.patterns) != 1 {
			t.Fatalf("expected one pattern, got %v", bl.patterns)
		}
	})

	t.Run("nil blocklist", func(t *testing.T) {
		var bl *IframeBlocklist
		if bl.IsBlocked("https://doubleclick.net") {
			t.Fatalf("nil blocklist should not block")
		}
	})
}
