package util

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide sugared logger. It defaults to a no-op so
// library code can log unconditionally; InitLogger swaps in the real one.
var Logger *zap.SugaredLogger = zap.NewNop().Sugar()

// InitLogger builds the run logger. When logDir is non-empty, output is
// duplicated into <logDir>/run.log alongside stderr.
func InitLogger(verbose bool, logDir string) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	if logDir != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(logDir, "run.log"))
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	Logger = l.Sugar()
	return nil
}

// Sync flushes buffered log entries. Safe to call on the no-op logger.
func Sync() {
	_ = Logger.Sync()
}
