package alert

import (
	"context"

	"github.com/relaylb/checkengine/internal/logging"
)

// LogSink writes liveness events through the ambient structured
// logger, the same idiom the rest of the repo uses for operational
// output.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink wraps an existing logger.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit logs ev at a level matched to its severity.
func (s *LogSink) Emit(_ context.Context, ev Event) {
	switch ev.Level {
	case Emergency, Critical:
		s.log.Error(ev.Message, "proxy", ev.Proxy, "server", ev.Server, "level", ev.Level.String())
	case Warning:
		s.log.Warn(ev.Message, "proxy", ev.Proxy, "server", ev.Server, "level", ev.Level.String())
	default:
		s.log.Info(ev.Message, "proxy", ev.Proxy, "server", ev.Server, "level", ev.Level.String())
	}
}
