// Package logging builds the zap loggers used across websift.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the process-wide logger. Development mode emits colored console
// output at debug level; production mode emits sampled JSON at info level.
// Both stamp every entry with the app field so sift runs are attributable
// when their output is aggregated.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.TimeKey = "ts"
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeDuration = zapcore.StringDurationEncoder
		cfg = zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
			Development:      true,
			Encoding:         "console",
			EncoderConfig:    enc,
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
	}
	logger, err := cfg.Build(zap.Fields(zap.String("app", "websift")))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
