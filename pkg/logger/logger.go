package logger

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the global logger's construction.
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	Service string
	Env     string
}

type ctxKey int

const (
	ctxKeySubmissionID ctxKey = iota
	ctxKeyTestID
	ctxKeyRequestID
)

func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySubmissionID, id)
}

func WithTestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTestID, id)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

var (
	global   *zap.Logger
	globalMu sync.RWMutex
)

func init() {
	global, _ = build(Config{Level: "info", Format: "console", Service: "judgecore"})
}

// Init replaces the global logger. Call once at process startup.
func Init(cfg Config) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = customTimeEncoder
	encoderCfg.TimeKey = "ts"

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	staticFields := buildStaticFields(cfg)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.Fields(staticFields...)), nil
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000Z0700"))
}

func buildStaticFields(cfg Config) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		fields = append(fields, zap.String("env", cfg.Env))
	}
	return fields
}

func current() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// extractFieldsFromContext pulls the judge-domain correlation ids a context
// may carry, so every log line tied to a run can be grepped by submission.
func extractFieldsFromContext(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if v, ok := ctx.Value(ctxKeySubmissionID).(string); ok && v != "" {
		fields = append(fields, zap.String("submission_id", v))
	}
	if v, ok := ctx.Value(ctxKeyTestID).(string); ok && v != "" {
		fields = append(fields, zap.String("test_id", v))
	}
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok && v != "" {
		fields = append(fields, zap.String("request_id", v))
	}
	return fields
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	current().Debug(msg, append(extractFieldsFromContext(ctx), fields...)...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	current().Info(msg, append(extractFieldsFromContext(ctx), fields...)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	current().Warn(msg, append(extractFieldsFromContext(ctx), fields...)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	current().Error(msg, append(extractFieldsFromContext(ctx), fields...)...)
}

func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	current().Fatal(msg, append(extractFieldsFromContext(ctx), fields...)...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error {
	return current().Sync()
}

// GetLogger exposes the raw *zap.Logger for callers that need it directly
// (e.g. passing into a third-party client's logger adapter).
func GetLogger() *zap.Logger {
	return current()
}
