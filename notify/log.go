package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to a slog logger. The CLI always includes it so
// every lifecycle event lands in the run log.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier logs to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	attrs := []any{"event_type", event.Type}
	if event.Tarball != "" {
		attrs = append(attrs, "tarball", event.Tarball)
	}
	if event.RunID != "" {
		attrs = append(attrs, "run_id", event.RunID)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	n.Logger.Log(ctx, level, event.Message, attrs...)
	return nil
}
