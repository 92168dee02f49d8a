package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow scan events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 2},
		{RunID: runID, TS: now, Stage: progress.StageScanStart, URL: "https://a.edu", Slot: 0},
		{RunID: runID, TS: now, Stage: progress.StageScanStart, URL: "https://b.edu", Slot: 1},
		{RunID: runID, TS: now, Stage: progress.StageScanStep, URL: "https://a.edu", Step: progress.StepMobile},
		{RunID: runID, TS: now, Stage: progress.StageScanStep, URL: "https://b.edu", Step: progress.StepMobile},
		{RunID: runID, TS: now, Stage: progress.StageScanDone, URL: "https://a.edu", Outcome: "success", Dur: 12 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.queued))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.scansStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.scansRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.scansCompleted.WithLabelValues("success")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.steps.WithLabelValues(progress.StepMobile)))
	require.Equal(t, 1, testutil.CollectAndCount(sink.scanDuration, "videoscan_scan_duration_seconds"))

	// A duplicate completion must not drive the gauge negative.
	require.NoError(t, sink.Consume(context.Background(), batch[5:]))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.scansRunning))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register progress collector")
}
