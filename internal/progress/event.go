// Package progress defines the event structures emitted by site scans.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageScanStart Stage = "SCAN_START"
	StageScanStep  Stage = "SCAN_STEP"
	StageScanDone  Stage = "SCAN_DONE"
)

// Step labels reported with StageScanStep.
const (
	StepOpenBrowser = "Open Browser"
	StepMobile      = "Mobile scan"
	StepDesktop     = "Desktop scan"
	StepScreenshot  = "Screenshot"
	StepProbe       = "Probe sources"
	StepMetrics     = "SpeedyU lookup"
	StepMotion      = "Reduced Motion Check"
	StepSave        = "Save"
	StepClose       = "Close Browser"
)

// Event captures a single milestone of a run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Slot is the concurrency slot the scan occupies.
	Slot int
	// URL is the site being scanned; empty for run events.
	URL string
	// Step names the pipeline step for StageScanStep.
	Step string
	// Outcome carries the classification for StageScanDone.
	Outcome string
	// Total is the number of queued URLs on StageRunStart.
	Total int
	// Dur captures the scan or run wall time on completion.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageScanStart:
		if e.URL == "" {
			return errors.New("scan start requires url")
		}
	case StageScanStep:
		if e.URL == "" || e.Step == "" {
			return errors.New("scan step requires url and step")
		}
	case StageScanDone:
		if e.URL == "" {
			return errors.New("scan done requires url")
		}
		if e.Outcome == "" {
			return errors.New("scan done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Slot < 0 {
		return errors.New("slot must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
