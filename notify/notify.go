package notify

import "go.uber.org/zap"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-visible message surfaced outside the transcript.
type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) {
	f(n)
}

func Discard() Sink {
	return SinkFunc(func(Notification) {})
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
	}
	switch n.Severity {
	case SeverityError:
		s.logger.Error("notification", fields...)
	case SeverityWarning:
		s.logger.Warn("notification", fields...)
	default:
		s.logger.Info("notification", fields...)
	}
}
