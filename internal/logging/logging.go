package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agora/internal/config"
)

// New builds the application logger from configuration. Development
// mode uses the console encoder; otherwise structured JSON.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
