package crawler

import (
	"errors"
	"strings"
)

var (
	notFoundMarkers   = []string{"404"}
	unresolvedMarkers = []string{
		"ENOTFOUND",
		"ERR_NAME_NOT_RESOLVED",
		"NS_ERROR_UNKNOWN_HOST",
		"no such host",
	}
)

// Classify maps a mobile-capture error to a scan outcome. Sentinel errors win;
// otherwise the renderer's message text decides, and anything unrecognized is
// a general error.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrUnresolved):
		return OutcomeUnresolved
	}
	msg := err.Error()
	if containsAny(msg, notFoundMarkers) {
		return OutcomeNotFound
	}
	if containsAny(msg, unresolvedMarkers) {
		return OutcomeUnresolved
	}
	return OutcomeGeneralError
}

func containsAny(msg string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
