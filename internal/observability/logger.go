package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "weather-cache-service"

// NewLogger builds the production JSON logger. Level comes from LOG_LEVEL (default INFO).
func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = parseLogLevel(os.Getenv("LOG_LEVEL"))
	config.InitialFields = map[string]interface{}{"service": ServiceName}

	return config.Build()
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationIDKey
)

// WithCorrelationID returns a context carrying id and a logger tagged with it.
// The id is forwarded to the weather API as X-Correlation-ID.
func WithCorrelationID(ctx context.Context, logger *zap.Logger, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey, id)
	if logger != nil {
		ctx = context.WithValue(ctx, loggerKey, logger.With(zap.String("correlation_id", id)))
	}
	return ctx
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// LoggerFromContext returns the request-scoped logger, or fallback when none is set.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}
