package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress"
)

// LogSink emits one debug line per progress event. It replaces the terminal
// progress bars when stdout is not a terminal.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageRunStart:
			fields = append(fields, zap.Int("total", evt.Total))
		case progress.StageRunDone:
			fields = append(fields, zap.Duration("dur", evt.Dur))
		default:
			fields = append(fields, zap.Int("slot", evt.Slot), zap.String("url", evt.URL))
			if evt.Step != "" {
				fields = append(fields, zap.String("step", evt.Step))
			}
			if evt.Outcome != "" {
				fields = append(fields, zap.String("outcome", evt.Outcome), zap.Duration("dur", evt.Dur))
			}
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
