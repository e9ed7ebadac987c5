// Package vaxlog builds the zap.SugaredLogger every manager is
// constructed with. It replaces the original implementation's global
// log::info!/log::debug! macros with an explicit, injectable logger,
// which is also what makes manager tests quiet by default.
package vaxlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production (JSON) logger, unless VAXTIFY_DEV is set in
// the environment, in which case it builds a human-readable console
// logger instead.
func New() *zap.SugaredLogger {
	var cfg zap.Config
	if os.Getenv("VAXTIFY_DEV") != "" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		// zap.Config.Build only fails on a malformed config; ours is
		// static, so fall back rather than make every caller handle it.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// Noop returns a logger that discards everything, for use in tests
// that don't want log output cluttering `go test -v`.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
