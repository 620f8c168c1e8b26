// Package telemetry wires structured logging for the TA and CA processes.
// It never accepts secret-derived values; callers pass only command IDs,
// session/wallet IDs, error kinds, and lengths.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger. Production mode emits JSON with RFC3339Nano
// timestamps; development mode emits a human-readable console encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
