package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorTime      = "\x1b[38;5;107m"
	colorComponent = "\x1b[38;5;208m"
	colorKey       = "\x1b[38;5;245m"
	colorWarn      = "\x1b[38;5;179m"
	colorWarnBg    = "\x1b[48;5;58m"
	colorError     = "\x1b[38;5;167m"
	colorErrorBg   = "\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// consoleEncoder is a compact console encoder:
//
//	07:00:03  WARN  status  Open run predates report window  job_name=enrollment_csp run_id=...
//
// Fields attached with With() are kept in the embedded map encoder and
// printed after the per-entry fields, so a run_id set once shows on every line.
type consoleEncoder struct {
	*zapcore.MapObjectEncoder
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	clone := newConsoleEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(colorTime)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	if label := levelLabel(ent.Level); label != "" {
		final.AppendString("  ")
		final.AppendString(label)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent)
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	entryFields := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(entryFields)
	}
	if rendered := renderFields(entryFields.Fields, enc.Fields); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	final.AppendString("\n")
	return final, nil
}

// levelLabel returns a highlighted label for anything that is not plain info
func levelLabel(level zapcore.Level) string {
	switch level {
	case zapcore.InfoLevel:
		return ""
	case zapcore.DebugLevel:
		return colorKey + "DEBUG" + colorReset
	case zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	default:
		return colorBold + colorErrorBg + colorError + level.CapitalString() + colorReset
	}
}

// renderFields prints entry fields first, then context fields, each group
// sorted by key. Verbose error renderings (stack traces) are left to JSON mode.
func renderFields(groups ...map[string]interface{}) string {
	var parts []string
	seen := make(map[string]bool)
	for _, group := range groups {
		keys := make([]string, 0, len(group))
		for k := range group {
			if seen[k] || strings.HasSuffix(k, "Verbose") {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			parts = append(parts, colorKey+k+"="+colorReset+fmt.Sprint(group[k]))
		}
	}
	return strings.Join(parts, " ")
}
