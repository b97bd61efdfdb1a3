// Package logging builds the process-wide zap logger.
package logging

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger on stdout at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func New(service, level string) *zap.Logger {
	return zap.New(consoleCore(level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", service)),
	)
}

// WithOTel returns a logger that also ships records through the global
// OpenTelemetry logger provider. Call it after observability.Setup.
func WithOTel(service, level string) *zap.Logger {
	otelCore := otelzap.NewCore(service, otelzap.WithLoggerProvider(global.GetLoggerProvider()))
	return zap.New(zapcore.NewTee(otelCore, consoleCore(level)),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", service)),
	)
}

func consoleCore(level string) zapcore.Core {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), lvl)
}
