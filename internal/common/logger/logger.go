package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger.
// level: debug | info | warn | error (anything else means info)
// format: json | console
func New(level, format, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	lg, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		lg = lg.With(zap.String("service", service))
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		lg = lg.With(zap.String("hostname", h))
	}
	return lg, nil
}

// Must is New for bootstrap code paths that cannot continue without a logger.
func Must(level, format, service string) *zap.Logger {
	lg, err := New(level, format, service)
	if err != nil {
		return zap.NewExample()
	}
	return lg
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
