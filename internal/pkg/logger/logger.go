// Package logger emits single-line leveled records on the error stream in
// the form `{LEVEL|} message @file:line`. zap does the lifting; the line
// shape comes from a custom encoder.
package logger

import (
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar *zap.SugaredLogger
	pool  = buffer.NewPool()
)

func init() {
	core := zapcore.NewCore(
		lineEncoder{zapcore.NewConsoleEncoder(zapcore.EncoderConfig{})},
		zapcore.Lock(os.Stderr),
		level,
	)
	sugar = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// SetVerbose lowers the threshold so that Verbosef lines are emitted.
func SetVerbose(on bool) {
	if on {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Verbosef logs at the VERBOSE level.
func Verbosef(format string, args ...interface{}) { sugar.Debugf(format, args...) }

// Infof logs at the INFO level.
func Infof(format string, args ...interface{}) { sugar.Infof(format, args...) }

// Warningf logs at the WARNING level.
func Warningf(format string, args ...interface{}) { sugar.Warnf(format, args...) }

// Errorf logs at the ERROR level.
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }

// Fatalf logs at the FATAL level and exits with a non-zero status.
func Fatalf(format string, args ...interface{}) { sugar.Fatalf(format, args...) }

func levelName(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "VERBOSE"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARNING"
	case zapcore.ErrorLevel:
		return "ERROR"
	case zapcore.FatalLevel:
		return "FATAL"
	}
	return "UNKNOWN"
}

// lineEncoder renders entries as `{LEVEL|} message @file:line`. Field
// encoding is inherited from the wrapped console encoder; this repo logs
// printf-style only.
type lineEncoder struct {
	zapcore.Encoder
}

func (e lineEncoder) Clone() zapcore.Encoder {
	return lineEncoder{e.Encoder.Clone()}
}

func (e lineEncoder) EncodeEntry(ent zapcore.Entry, _ []zapcore.Field) (*buffer.Buffer, error) {
	buf := pool.Get()
	name := levelName(ent.Level)
	for i := len(name); i < 7; i++ {
		buf.AppendByte(' ')
	}
	buf.AppendString(name)
	buf.AppendByte('|')
	buf.AppendByte(' ')
	buf.AppendString(ent.Message)
	if ent.Caller.Defined {
		buf.AppendString(" @")
		buf.AppendString(filepath.Base(ent.Caller.File))
		buf.AppendByte(':')
		buf.AppendString(strconv.Itoa(ent.Caller.Line))
	}
	buf.AppendByte('\n')
	return buf, nil
}
