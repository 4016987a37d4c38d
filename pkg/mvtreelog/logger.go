// Package mvtreelog builds the structured logger shared by pmpool and
// mvtree. It mirrors the teacher's settings.Logger configuration shape
// (log level, rotation knobs) but is trimmed to exactly what an embedded
// engine needs: no app-wide settings.Config, just the logger.
package mvtreelog

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the structured logger. Zero value logs at Info level to
// stderr with no file rotation, which is convenient for tests.
type Config struct {
	Level string `mapstructure:"log_level"`

	// FileLogName enables rotation via lumberjack when non-empty.
	FileLogName string `mapstructure:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxSize     int    `mapstructure:"max_size"`
	Compress    bool   `mapstructure:"compress"`
}

// New builds a *zap.Logger from cfg. It never returns an error: an
// unparsable level falls back to Info rather than failing pool construction
// over a logging misconfiguration.
func New(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level))
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if cfg.FileLogName != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileLogName,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			MaxSize:    cfg.MaxSize,
			Compress:   cfg.Compress,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	return zap.New(core)
}

// Nop returns a logger that discards everything, for tests that don't care.
func Nop() *zap.Logger {
	return zap.NewNop()
}
