package decryptiondb

import (
	"os"
	"sync"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// defaultLogger backs Log(). It starts as a production JSON logger so that
// any code running before newLogger is called still has somewhere sane to
// write, mirroring caddy's logging.go default-logger-before-provisioning
// pattern.
var (
	defaultLogger   *zap.Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	l, _ := zap.NewProduction()
	defaultLogger = l
}

// Log returns the process-wide logger. It is safe for concurrent use.
func Log() *zap.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// setLog replaces the process-wide logger, used once at bootstrap.
func setLog(l *zap.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// LogConfig configures how the process-wide logger is built. An empty
// LogConfig produces a production JSON logger writing to stdout, the same
// default caddy.Logging falls back to when unconfigured.
type LogConfig struct {
	// Development switches to a console encoder with friendlier output.
	// Overridden by the DECRYPTIONDB_ENV=development environment variable,
	// mirroring caddy's CADDY_ADMIN env-override convention in admin.go.
	Development bool `toml:"development"`
	// File, if set, rotates logs through timberjack instead of stdout.
	File string `toml:"file"`
	// MaxSizeMB is timberjack's rotation threshold; ignored if File is empty.
	MaxSizeMB int `toml:"max_size_mb"`
}

func init() {
	if os.Getenv("DECRYPTIONDB_ENV") == "development" {
		developmentEnvOverride = true
	}
}

var developmentEnvOverride bool

// newLogger builds the process logger per cfg and installs it as the
// result of Log().
func newLogger(cfg LogConfig) (*zap.Logger, error) {
	development := cfg.Development || developmentEnvOverride

	var encoder zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	level := zapcore.InfoLevel
	if development {
		level = zapcore.DebugLevel
	}

	var sink zapcore.WriteSyncer
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		sink = zapcore.AddSync(&timberjack.Logger{
			Filename: cfg.File,
			MaxSize:  maxSize,
		})
	} else {
		sink = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, level)
	logger := zap.New(core)
	setLog(logger)
	return logger, nil
}
