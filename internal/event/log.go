// Package event provides sinks for share activity notifications.
package event

import (
	"libshare/internal/libshare"
)

// LogSink writes every event to the application logger.
type LogSink struct {
	logger libshare.Logger
}

// NewLogSink creates a sink that logs events at info level.
func NewLogSink(logger libshare.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ev libshare.Event) error {
	s.logger.Info("event",
		"type", ev.Type,
		"actor", ev.Actor,
		"repo_id", ev.RepoID,
		"target", ev.Target,
		"perm", ev.Perm,
		"at", ev.At,
	)
	return nil
}
