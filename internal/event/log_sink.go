package event

import (
	"github.com/julienstroheker/portrelay/internal/logging"
)

// LogSink renders events as human-readable log lines
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that writes to logger
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish writes one line for evt
func (s *LogSink) Publish(evt Event) {
	if s == nil || s.logger == nil {
		return
	}

	route := []logging.Field{
		logging.String("source", evt.Route.Source),
		logging.String("destination", evt.Route.Destination),
	}

	switch evt.Kind {
	case KindRouteStarted:
		s.logger.Info("Route listening", route...)
	case KindRouteFailed:
		s.logger.Error("Route failed", append(route, logging.Error(evt.Err))...)
	case KindAcceptError:
		s.logger.Warn("Accept failed, retrying", append(route, logging.Error(evt.Err))...)
	case KindRouteStopped:
		s.logger.Info("Route stopped", route...)
	case KindDialFailed:
		s.logger.Warn("Failed to connect to destination",
			append(route,
				logging.String("client", evt.Client),
				logging.Error(evt.Err))...)
	case KindConnectionOpened:
		s.logger.Info("New connection",
			append(route,
				logging.String("session", evt.SessionID),
				logging.String("client", evt.Client),
				logging.Int64("active", evt.Active))...)
	case KindConnectionClosed:
		fields := append(route,
			logging.String("session", evt.SessionID),
			logging.Int64("active", evt.Active),
			logging.Int64("bytes_up", evt.BytesUp),
			logging.Int64("bytes_down", evt.BytesDown),
			logging.Duration("duration", evt.Duration))
		if evt.Err != nil {
			s.logger.Warn("Connection dropped", append(fields, logging.Error(evt.Err))...)
			return
		}
		s.logger.Info("Connection closed", fields...)
	default:
		s.logger.Debug("Unknown event", append(route, logging.String("kind", string(evt.Kind)))...)
	}
}
