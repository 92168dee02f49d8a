package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	now := time.Now()
	cases := []struct {
		name    string
		evt     Event
		wantErr string
	}{
		{name: "run start", evt: Event{RunID: runID, TS: now, Stage: StageRunStart, Total: 3}},
		{name: "missing run id", evt: Event{TS: now, Stage: StageRunStart}, wantErr: "run id"},
		{name: "missing ts", evt: Event{RunID: runID, Stage: StageRunStart}, wantErr: "timestamp"},
		{name: "scan start without url", evt: Event{RunID: runID, TS: now, Stage: StageScanStart}, wantErr: "requires url"},
		{name: "step without label", evt: Event{RunID: runID, TS: now, Stage: StageScanStep, URL: "https://a.edu"}, wantErr: "requires url and step"},
		{name: "done without outcome", evt: Event{RunID: runID, TS: now, Stage: StageScanDone, URL: "https://a.edu"}, wantErr: "requires outcome"},
		{name: "negative slot", evt: Event{RunID: runID, TS: now, Stage: StageScanStart, URL: "https://a.edu", Slot: -1}, wantErr: "slot"},
		{name: "negative dur", evt: Event{RunID: runID, TS: now, Stage: StageRunDone, Dur: -time.Second}, wantErr: "duration"},
		{name: "unknown stage", evt: Event{RunID: runID, TS: now, Stage: "NOPE"}, wantErr: "unknown stage"},
		{name: "scan done", evt: Event{RunID: runID, TS: now, Stage: StageScanDone, URL: "https://a.edu", Outcome: "success", Slot: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	evt := Event{RunID: UUIDToBytes(id)}
	require.Equal(t, id, evt.RunUUID())
}
