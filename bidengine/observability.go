package bidengine

import (
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
//
// It is satisfied by *slog.Logger and by the adapters in the oteladapters package.
// A nil logger disables logging entirely.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting engine performance and operational metrics.
//
// This interface follows a dependency-free pattern, allowing users to integrate with any
// metrics backend (OpenTelemetry, Prometheus, StatsD, etc.) by implementing it.
// The oteladapters package provides a ready-made OpenTelemetry implementation.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}
