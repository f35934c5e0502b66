package monitoring

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Stream names attached to every ZapSink entry under the "stream" key.
const (
	StreamOps   = "ops"
	StreamDiag  = "diag"
	StreamTrace = "trace"
)

// LoggerConfig selects level and encoding for NewLogger.
type LoggerConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"` // "json" or "console"
	Development bool   `json:"development"`
}

// NewLogger builds a zap logger writing to stderr. An unparseable level
// falls back to info.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zc.Level = level
	if cfg.Format == "console" {
		zc.Encoding = "console"
	} else {
		zc.Encoding = "json"
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// ZapSink routes pipeline diagnostics to a zap logger: ops at info, diag and
// trace at debug.
type ZapSink struct {
	ops   *zap.SugaredLogger
	diag  *zap.SugaredLogger
	trace *zap.SugaredLogger
}

// NewZapSink wraps l. A nil logger yields a sink that drops everything.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapSink{
		ops:   l.With(zap.String("stream", StreamOps)).Sugar(),
		diag:  l.With(zap.String("stream", StreamDiag)).Sugar(),
		trace: l.With(zap.String("stream", StreamTrace)).Sugar(),
	}
}

// With returns a sink whose entries carry the extra fields, e.g. a run id.
func (s *ZapSink) With(fields ...zapcore.Field) *ZapSink {
	args := make([]interface{}, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &ZapSink{
		ops:   s.ops.With(args...),
		diag:  s.diag.With(args...),
		trace: s.trace.With(args...),
	}
}

func (s *ZapSink) Opsf(format string, args ...interface{})   { s.ops.Infof(format, args...) }
func (s *ZapSink) Diagf(format string, args ...interface{})  { s.diag.Debugf(format, args...) }
func (s *ZapSink) Tracef(format string, args ...interface{}) { s.trace.Debugf(format, args...) }

// ZapLogf adapts l for SetLogger.
func ZapLogf(l *zap.Logger) func(format string, v ...interface{}) {
	sugar := l.Sugar()
	return func(format string, v ...interface{}) { sugar.Infof(format, v...) }
}

var _ floorplan.Sink = (*ZapSink)(nil)
