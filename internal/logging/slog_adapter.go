package logging

import (
	"context"
	"log/slog"
)

// SlogAdapter adapts the standard library's slog.Logger to Logger, gated by
// a minimum Level.
type SlogAdapter struct {
	logger *slog.Logger
	min    Level
}

// NewSlogAdapter wraps logger, only forwarding records at or above min.
func NewSlogAdapter(logger *slog.Logger, min Level) *SlogAdapter {
	return &SlogAdapter{logger: logger, min: min}
}

func (s *SlogAdapter) Debug(ctx context.Context, msg string, fields ...Field) {
	if s.min < LevelDebug {
		return
	}
	s.logger.DebugContext(ctx, msg, s.convert(fields)...)
}

func (s *SlogAdapter) Info(ctx context.Context, msg string, fields ...Field) {
	if s.min < LevelInfo {
		return
	}
	s.logger.InfoContext(ctx, msg, s.convert(fields)...)
}

func (s *SlogAdapter) Warn(ctx context.Context, msg string, fields ...Field) {
	if s.min < LevelWarn {
		return
	}
	s.logger.WarnContext(ctx, msg, s.convert(fields)...)
}

func (s *SlogAdapter) Error(ctx context.Context, msg string, fields ...Field) {
	if s.min < LevelError {
		return
	}
	s.logger.ErrorContext(ctx, msg, s.convert(fields)...)
}

func (s *SlogAdapter) convert(fields []Field) []any {
	attrs := make([]any, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}
