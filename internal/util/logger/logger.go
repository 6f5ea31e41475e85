package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger. It discards everything until Init runs.
var Log = zap.NewNop()

// New builds a development logger writing to stdout at the given level
// (debug, info, warn, error).
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", level, err)
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// Init replaces Log and zap's global logger with a logger at level.
func Init(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}

	Log = l
	zap.ReplaceGlobals(l)
	return nil
}

func Sync() error {
	return Log.Sync()
}
