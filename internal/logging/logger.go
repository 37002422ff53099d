// Package logging wraps the structured-logging collaborator contract of
// spec.md §6.5 ({timestamp, level, logger, message, ...extras}) behind a
// small interface, so the core never depends on a concrete *zap.Logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger the core calls. Field pairs are
// logger-agnostic key/value pairs, matching the "extras" of spec.md §6.5.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
}

// Field is a single structured key/value pair.
type Field = zap.Field

// String, Int, Int64, Float64, Err, Duration mirror zap's constructors so
// call sites never import zap directly outside this package.
var (
	String   = zap.String
	Int      = zap.Int
	Int32    = zap.Int32
	Int64    = zap.Int64
	Float64  = zap.Float64
	Err      = zap.Error
	Duration = zap.Duration
	Bool     = zap.Bool
)

type zapLogger struct {
	l *zap.Logger
}

// New builds the production Logger: JSON output unless debug is true, in
// which case it switches to zap's console encoder — same "debug flag
// attaches context" posture spec.md §7 asks for at the propagation layer.
func New(debug bool) Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// Nop returns a Logger that discards everything, used in tests.
func Nop() Logger { return &zapLogger{l: zap.NewNop()} }

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }

func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{l: z.l.Named(name)}
}
