package crawler

// Aggregate merges the per-stage results of one scan into its SiteRecord.
//
// Video fields come from the mobile observation when present, else the
// desktop one, and are only filled when the observation's active source has a
// probe entry. The iframe summary reads the mobile list only. The motion field
// is populated only when the reduced-motion stage ran.
func Aggregate(r StageResults) SiteRecord {
	rec := NewSiteRecord(r.URL)
	if r.Failure != nil {
		rec.Outcome = r.Failure.Outcome
	}
	if r.FinalURL != "" && !SameSite(r.FinalURL, r.URL) {
		rec.RedirectedTo = r.FinalURL
	}

	if r.Mobile != nil {
		rec.AboveFoldMobile = r.Mobile.HasMedia()
		rec.IframesMobile = r.Mobile.Iframes
		rec.VideoMobile = r.Mobile.Video
	}
	if r.Desktop != nil {
		rec.AboveFoldDesktop = r.Desktop.HasMedia()
		rec.IframesDesktop = r.Desktop.Iframes
		rec.VideoDesktop = r.Desktop.Video
	}

	if len(rec.IframesMobile) > 0 {
		rec.IframeSource = rec.IframesMobile[0]
	}

	if obs := preferredObservation(rec.VideoMobile, rec.VideoDesktop); obs != nil {
		if probe, ok := obs.Probes[obs.CurrentSrc]; ok {
			rec.Video = &VideoSummary{
				Source:      obs.CurrentSrc,
				SelfHosted:  obs.SelfHosted,
				CDNDomain:   obs.CDNDomain,
				SourceCount: len(obs.Sources),
				TrackFound:  len(obs.Tracks) > 0,
				Attributes:  obs.Attributes,
				Probe:       probe,
			}
		}
	}
	if rec.VideoMobile != nil && rec.VideoDesktop != nil &&
		rec.VideoMobile.CurrentSrc != rec.VideoDesktop.CurrentSrc {
		rec.SourcesDiffer = true
	}

	rec.Metrics = r.Metrics
	rec.Motion = r.Motion
	return rec
}

func preferredObservation(mobile, desktop *VideoObservation) *VideoObservation {
	if mobile != nil {
		return mobile
	}
	return desktop
}

// MotionViewport picks the capture whose video was observed playing, mobile
// first. ok is false when no viewport saw a playing video.
func MotionViewport(r StageResults) (Viewport, bool) {
	if r.Mobile != nil && r.Mobile.Video != nil && r.Mobile.Video.Playing {
		return r.Mobile.Viewport, true
	}
	if r.Desktop != nil && r.Desktop.Video != nil && r.Desktop.Video.Playing {
		return r.Desktop.Viewport, true
	}
	return Viewport{}, false
}
