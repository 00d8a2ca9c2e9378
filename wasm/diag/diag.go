// Package diag adapts wasm.ErrorSink onto structured logging, for callers
// that want decode/validation diagnostics to flow into their existing
// observability stack instead of (or in addition to) an in-memory slice.
package diag

import (
	"go.uber.org/zap"

	"github.com/tinwasm/wasmcore/wasm"
)

// LogSink reports every diagnostic to a zap.Logger at warn level. It is
// nil-safe: a zero-value LogSink logs to a no-op logger, mirroring the
// "nil-safe no-op default, SetLogger to override" shape used elsewhere in
// the retrieved pack for ambient loggers.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink that writes to logger. A nil logger is
// replaced with zap.NewNop().
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

var _ wasm.ErrorSink = (*LogSink)(nil)

// Report implements wasm.ErrorSink.
func (s *LogSink) Report(d wasm.Diagnostic) {
	logger := s.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("wasm validation diagnostic",
		zap.Uint32("offset", d.Offset),
		zap.Stringer("kind", d.Kind),
		zap.String("message", d.Message),
		zap.Strings("context", d.Context),
	)
}

// Tee reports every diagnostic to both sinks, for combining a LogSink with a
// wasm.CollectingSink when both observability and a programmatic result are
// wanted.
type Tee struct {
	Sinks []wasm.ErrorSink
}

func (t Tee) Report(d wasm.Diagnostic) {
	for _, s := range t.Sinks {
		s.Report(d)
	}
}
