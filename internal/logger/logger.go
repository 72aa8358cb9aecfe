package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	mutex  sync.Mutex
)

// Init builds the global logger. Production environments log JSON at the given level, any other environment logs
// colored console lines
func Init(env, level string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = atomicLevel

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("cannot build logger: %w", err)
	}

	mutex.Lock()
	defer mutex.Unlock()
	logger = built
	return nil
}

// Get retrieves the global logger, a development one if Init was never called
func Get() *zap.Logger {
	mutex.Lock()
	defer mutex.Unlock()
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}
