// Package logging builds the zap logger used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported levels. "none" discards everything.
const (
	LevelNone   = "none"
	LevelNormal = "normal"
	LevelDebug  = "debug"
)

// New returns a console logger writing to stderr, leaving stdout to
// program output.
func New(level string) (*zap.Logger, error) {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter returns a console logger writing to w.
func NewWithWriter(level string, w io.Writer) (*zap.Logger, error) {
	var enabler zapcore.LevelEnabler
	switch level {
	case LevelNone:
		return zap.NewNop(), nil
	case LevelNormal, "":
		enabler = zapcore.InfoLevel
	case LevelDebug:
		enabler = zapcore.DebugLevel
	default:
		return nil, fmt.Errorf("unknown log level '%s' (expected %s, %s or %s)", level, LevelNone, LevelNormal, LevelDebug)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.TimeKey = zapcore.OmitKey
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(zapcore.AddSync(w)), enabler)
	return zap.New(core), nil
}
