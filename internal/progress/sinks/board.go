package sinks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
)

// SlotState is what one concurrency slot is doing.
type SlotState struct {
	Slot  int       `json:"slot"`
	Busy  bool      `json:"busy"`
	URL   string    `json:"url,omitempty"`
	Step  string    `json:"step,omitempty"`
	Since time.Time `json:"since"`
}

// Summary aggregates a run.
type Summary struct {
	RunID      string         `json:"runId,omitempty"`
	Total      int            `json:"total"`
	Started    int            `json:"started"`
	Completed  int            `json:"completed"`
	Outcomes   map[string]int `json:"outcomes"`
	Running    bool           `json:"running"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// BoardSink keeps a live per-slot view of the run and optionally renders each
// change as a status line, e.g. "[3/120] slot 1 https://a.edu - Mobile scan".
type BoardSink struct {
	mu      sync.RWMutex
	slots   map[int]SlotState
	summary Summary
	out     io.Writer
}

// NewBoardSink creates an empty board. out may be nil.
func NewBoardSink(out io.Writer) *BoardSink {
	return &BoardSink{
		slots:   make(map[int]SlotState),
		summary: Summary{Outcomes: make(map[string]int)},
		out:     out,
	}
}

// Consume applies the batch to the board.
func (b *BoardSink) Consume(_ context.Context, batch []progress.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range batch {
		b.apply(evt)
	}
	return nil
}

func (b *BoardSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		b.summary = Summary{
			RunID:     evt.RunUUID().String(),
			Total:     evt.Total,
			Outcomes:  make(map[string]int),
			Running:   true,
			StartedAt: evt.TS,
		}
		b.slots = make(map[int]SlotState)
		b.render("run %s started with %d urls", b.summary.RunID, evt.Total)
	case progress.StageScanStart:
		b.summary.Started++
		b.slots[evt.Slot] = SlotState{Slot: evt.Slot, Busy: true, URL: evt.URL, Step: "Start", Since: evt.TS}
		b.render("[%d/%d] slot %d %s - Start", b.summary.Completed, b.summary.Total, evt.Slot, evt.URL)
	case progress.StageScanStep:
		b.slots[evt.Slot] = SlotState{Slot: evt.Slot, Busy: true, URL: evt.URL, Step: evt.Step, Since: evt.TS}
		b.render("[%d/%d] slot %d %s - %s", b.summary.Completed, b.summary.Total, evt.Slot, evt.URL, evt.Step)
	case progress.StageScanDone:
		b.summary.Completed++
		b.summary.Outcomes[evt.Outcome]++
		b.slots[evt.Slot] = SlotState{Slot: evt.Slot, URL: evt.URL, Step: "Done", Since: evt.TS}
		b.render("[%d/%d] slot %d %s - Done (%s)", b.summary.Completed, b.summary.Total, evt.Slot, evt.URL, evt.Outcome)
	case progress.StageRunDone:
		b.summary.Running = false
		b.summary.FinishedAt = evt.TS
		b.render("run complete: %d scanned in %s", b.summary.Completed, evt.Dur.Round(time.Second))
	}
}

func (b *BoardSink) render(format string, args ...any) {
	if b.out == nil {
		return
	}
	_, _ = fmt.Fprintf(b.out, format+"\n", args...)
}

// Slots returns the board ordered by slot index.
func (b *BoardSink) Slots() []SlotState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SlotState, 0, len(b.slots))
	for _, s := range b.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Summary returns a copy of the run totals.
func (b *BoardSink) Summary() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.summary
	s.Outcomes = make(map[string]int, len(b.summary.Outcomes))
	for k, v := range b.summary.Outcomes {
		s.Outcomes[k] = v
	}
	return s
}

// Close implements the Sink interface; it performs no action.
func (b *BoardSink) Close(context.Context) error {
	return nil
}
