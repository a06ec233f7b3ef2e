package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger builds the process-wide zap logger. Debug switches the level to
// debug and enables caller information.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	mergedConfig := zap.NewProductionConfig()

	mergedConfig.EncoderConfig.TimeKey = "timestamp"
	mergedConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Debug {
		mergedConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		mergedConfig.Development = true
	} else {
		mergedConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		mergedConfig.DisableCaller = true
	}

	return mergedConfig.Build()
}
