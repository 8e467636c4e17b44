package obs

import (
	"io"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	base  atomic.Pointer[zap.Logger]
)

func init() {
	// stdout may carry the correction stream, logs stay on stderr
	SetOutput(os.Stderr)
}

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	if v {
		level.SetLevel(zap.DebugLevel)
		return
	}
	level.SetLevel(zap.InfoLevel)
}

// SetOutput redirects all log lines to w.
func SetOutput(w io.Writer) {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcTime,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	base.Store(zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)))
}

func utcTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

type Fields map[string]any

func toZap(f Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.String(k, err.Error()))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}

func Info(msg string, f Fields)  { base.Load().Info(msg, toZap(f)...) }
func Warn(msg string, f Fields)  { base.Load().Warn(msg, toZap(f)...) }
func Error(msg string, f Fields) { base.Load().Error(msg, toZap(f)...) }
func Debug(msg string, f Fields) {
	if ce := base.Load().Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(toZap(f)...)
	}
}

// Sync flushes buffered log entries.
func Sync() { _ = base.Load().Sync() }
