package logger

import "go.uber.org/zap/zapcore"

// VerbosityDebug is the -v count that enables debug output.
const VerbosityDebug = 1

// VerbosityToLevel maps the -v flag count to a zap level. Info lines form
// the operator's record of a run, so they are on by default.
func VerbosityToLevel(verbosity int) zapcore.Level {
	if verbosity >= VerbosityDebug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
