// Package oteladapters provides OpenTelemetry adapters for the bidengine
// observability interfaces, for users who want plug-and-play observability
// without implementing the interfaces themselves.
package oteladapters

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/auctionlab/bidding-engine-go/bidengine"
)

// SlogBridgeLogger implements bidengine.Logger using the OpenTelemetry slog
// bridge, so engine logs flow through the global OpenTelemetry LoggerProvider
// with automatic trace correlation.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger backed by the OpenTelemetry slog bridge.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogLoggerWithHandler creates a logger over the provided slog.Handler.
// This does not add OpenTelemetry correlation; it uses the handler as-is.
func NewSlogLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

// Debug logs a debug message.
func (l *SlogBridgeLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message.
func (l *SlogBridgeLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (l *SlogBridgeLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message.
func (l *SlogBridgeLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Ensure SlogBridgeLogger implements bidengine.Logger.
var _ bidengine.Logger = (*SlogBridgeLogger)(nil)
