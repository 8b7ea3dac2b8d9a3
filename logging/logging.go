// Package logging is the structured-logging ambient layer shared by every
// component of the cache core. It wraps go.uber.org/zap the same way this
// module's ancestry does: a package-level *zap.SugaredLogger initialized
// once at process start, safe to use before Initialize (a no-op logger is
// installed at package load time so early calls never panic).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide structured logger. Components take it as a
// constructor argument rather than calling this var directly, so tests can
// inject an observed or discard logger; package-level code (init paths,
// CLI glue) uses it directly.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize configures the global logger. jsonOutput selects structured
// JSON (for production/aggregation) versus a human-readable console
// encoder (for local development and the CLI).
func Initialize(jsonOutput bool) error {
	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderCfg),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Sync flushes any buffered log entries.
func Sync() error {
	if Logger == nil {
		return nil
	}
	return Logger.Sync()
}

// Named returns a child logger scoped to the given component name, the
// same pattern the worker pool and job emitter use upstream to pre-attach
// a component tag to every subsequent log line.
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}
