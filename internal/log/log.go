// Package log wraps a process-wide zap sugared logger.
package log

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = zap.NewNop().Sugar()

// Init builds the logger. Until it is called every log call is a no-op.
func Init(level, format, outputPath string) error {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.Encoding = "console"
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}

	zapConfig.Level = logLevel
	// stdout carries command output
	zapConfig.OutputPaths = []string{"stderr"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return err
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(outputPath, "symptra.log"))
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	sugar = logger.Sugar()
	return nil
}

// Logger exposes the underlying sugared logger
func Logger() *zap.SugaredLogger {
	return sugar
}

func Debugw(msg string, keysAndValues ...interface{}) {
	sugar.Debugw(msg, keysAndValues...)
}

func Info(msg string) {
	sugar.Info(msg)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow logs a message with structured key/value context
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar.Warnw(msg, keysAndValues...)
}

// Error logs msg with err attached under the "error" key
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = sugar.Sync()
}
