package logger

import (
	"fmt"

	"ckeytools/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger for the server and the CLI. An unknown
// Level is an error so a typo in the environment fails startup instead of
// silently logging at info.
func New(cfg *Config) (*zap.Logger, error) {
	zc, err := zapConfig(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.Format == FormatConsole {
		zc.Encoding = FormatConsole
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	} else {
		zc.Encoding = FormatJSON
	}

	// Stable field names for log shipping.
	zc.EncoderConfig.LevelKey = "level"
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.MessageKey = "message"

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

func zapConfig(level string) (zap.Config, error) {
	switch level {
	case "debug":
		return zap.NewDevelopmentConfig(), nil
	case "":
		return zap.NewProductionConfig(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc, nil
}

// WithRayID tags l with the ray id the rayid middleware stored on c, so every
// entry logged while handling a verification or admin request can be matched
// to the X-Ray-ID header returned to the caller.
func WithRayID(l *zap.Logger, c *fiber.Ctx) *zap.Logger {
	if id, ok := c.Locals(rayid.LocalsKey).(string); ok && id != "" {
		return l.With(zap.String("ray_id", id))
	}
	return l
}
