// Package logger configures the process-wide zap logger and the structured
// field names shared by every batchwatch component.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process-wide logger. It discards everything until
	// Initialize is called.
	Logger = zap.NewNop().Sugar()

	// JSONOutput records whether Initialize selected JSON encoding.
	JSONOutput bool
)

// Initialize installs the process-wide logger. JSON goes to stderr for runs
// under cron or systemd; otherwise the console encoder is used. verbosity is
// the -v flag count.
func Initialize(jsonOutput bool, verbosity int) error {
	level := VerbosityToLevel(verbosity)

	var zl *zap.Logger
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.Sampling = nil
		built, err := cfg.Build()
		if err != nil {
			return err
		}
		zl = built
	} else {
		zl = zap.New(zapcore.NewCore(newConsoleEncoder(), zapcore.Lock(os.Stderr), level))
	}

	JSONOutput = jsonOutput
	Logger = zl.Sugar()
	return nil
}

// Cleanup flushes buffered entries. Call once before exit.
func Cleanup() {
	_ = Logger.Sync()
}

// Infow logs on the process-wide logger.
func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

// Warnw logs on the process-wide logger.
func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

// Debugw logs on the process-wide logger.
func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}
