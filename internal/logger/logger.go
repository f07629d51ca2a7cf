package logger

import (
	"fmt"

	"github.com/stroyteh/kanban-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger. DEBUG forces the debug level.
// JSON output (production) uses ISO8601 timestamps and samples repeated
// messages; console output is colored and unsampled.
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.Sampling = nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if appCfg.Debug {
		level = zapcore.DebugLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// WithTask scopes a logger to a queue worker handling an event
func WithTask(logger *zap.Logger, worker int, eventID int64) *zap.Logger {
	return logger.With(
		zap.Int("worker", worker),
		zap.Int64("event_id", eventID),
	)
}

// WithEvent scopes a logger to a card event
func WithEvent(logger *zap.Logger, eventID int64) *zap.Logger {
	return logger.With(zap.Int64("event_id", eventID))
}

// WithRule scopes a logger to a rule applied to an event
func WithRule(logger *zap.Logger, eventID, ruleID int64) *zap.Logger {
	return logger.With(
		zap.Int64("event_id", eventID),
		zap.Int64("rule_id", ruleID),
	)
}
