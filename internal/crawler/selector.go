package crawler

import (
	"context"
	"fmt"
	"strings"
)

// AboveFold reports whether a rendered element's top edge lies within the
// initial viewport height.
func AboveFold(box *Box, viewportHeight int) bool {
	return box != nil && box.Y <= float64(viewportHeight)
}

// SelectVideo picks the representative video for a page in one pass over the
// document-ordered elements:
//
//  1. the first element that is playing and above the fold wins immediately,
//     and only its live current source is reported;
//  2. otherwise the last above-the-fold element visited is chosen;
//  3. otherwise the last element in document order is chosen.
//
// For cases 2 and 3 the chosen element's src attribute and child sources are
// resolved against pageURL. It returns nil when the chosen element has no
// sources (or the page has no videos).
func SelectVideo(ctx context.Context, page Page, vp Viewport, pageURL string) (*VideoObservation, error) {
	videos, err := page.Videos(ctx)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	if len(videos) == 0 {
		return nil, nil
	}

	var (
		chosen, last, lastAbove  VideoElement
		chosenAbove, lastIsAbove bool
		live, anyPlaying         bool
		sources                  []string
	)
	for i, v := range videos {
		box, err := v.BoundingBox(ctx)
		if err != nil {
			return nil, fmt.Errorf("video %d bounding box: %w", i, err)
		}
		above := AboveFold(box, vp.Height)
		playing, err := v.IsPlaying(ctx)
		if err != nil {
			return nil, fmt.Errorf("video %d playback state: %w", i, err)
		}
		if playing {
			anyPlaying = true
			if above {
				current, err := v.CurrentSrc(ctx)
				if err != nil {
					return nil, fmt.Errorf("video %d current source: %w", i, err)
				}
				chosen, chosenAbove, live = v, true, true
				if resolved := ResolveURL(pageURL, current); resolved != "" {
					sources = []string{resolved}
				}
				break
			}
		}
		last, lastIsAbove = v, above
		if above {
			lastAbove = v
		}
	}

	if !live {
		chosen, chosenAbove = last, lastIsAbove
		if lastAbove != nil {
			chosen, chosenAbove = lastAbove, true
		}
		raw, err := chosen.Sources(ctx)
		if err != nil {
			return nil, fmt.Errorf("video sources: %w", err)
		}
		sources = resolveAll(pageURL, raw)
	}
	if len(sources) == 0 {
		return nil, nil
	}

	obs := &VideoObservation{
		Sources:    sources,
		AboveFold:  chosenAbove,
		Playing:    anyPlaying,
		SelfHosted: IsSelfHosted(pageURL, sources),
	}
	if !obs.SelfHosted {
		obs.CDNDomain = CDNDomain(sources[0])
	}
	if err := describeVideo(ctx, chosen, pageURL, obs); err != nil {
		return nil, err
	}
	return obs, nil
}

func describeVideo(ctx context.Context, v VideoElement, pageURL string, obs *VideoObservation) error {
	current, err := v.CurrentSrc(ctx)
	if err != nil {
		return fmt.Errorf("video current source: %w", err)
	}
	attrs, err := v.Attributes(ctx)
	if err != nil {
		return fmt.Errorf("video attributes: %w", err)
	}
	tracks, err := v.Tracks(ctx)
	if err != nil {
		return fmt.Errorf("video tracks: %w", err)
	}
	attrs.Poster = ResolveURL(pageURL, attrs.Poster)
	for i := range tracks {
		tracks[i].Src = ResolveURL(pageURL, tracks[i].Src)
	}
	obs.CurrentSrc = ResolveURL(pageURL, current)
	obs.Attributes = attrs
	obs.Tracks = tracks
	return nil
}

// SelectIframes returns the above-the-fold iframe sources that survive the
// blocklist and the zero-size filter, in document order, resolved against
// pageURL. Protocol-relative sources are normalized to https; iframes without
// a src are skipped.
func SelectIframes(ctx context.Context, page Page, vp Viewport, pageURL string, blocklist *IframeBlocklist) ([]string, error) {
	iframes, err := page.Iframes(ctx)
	if err != nil {
		return nil, fmt.Errorf("query iframes: %w", err)
	}
	var out []string
	for i, frame := range iframes {
		src, err := frame.Src(ctx)
		if err != nil {
			return nil, fmt.Errorf("iframe %d src: %w", i, err)
		}
		src = strings.TrimSpace(src)
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		if src == "" || blocklist.IsBlocked(src) {
			continue
		}
		box, err := frame.BoundingBox(ctx)
		if err != nil {
			return nil, fmt.Errorf("iframe %d bounding box: %w", i, err)
		}
		if box == nil || box.Width == 0 || box.Height == 0 {
			continue
		}
		if AboveFold(box, vp.Height) {
			out = append(out, ResolveURL(pageURL, src))
		}
	}
	return out, nil
}

func resolveAll(base string, raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, ref := range raw {
		if resolved := ResolveURL(base, ref); resolved != "" {
			out = append(out, resolved)
		}
	}
	return out
}
