// Package logger initializes the process-wide zap logger with file rotation.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the configured structured logger
	Logger *zap.Logger
	// Sugar is the sugared variant most components take
	Sugar *zap.SugaredLogger
)

// Init configures the global logger, writing to stdout and a rotated file.
// Call once at startup; components receive *zap.SugaredLogger from here.
func Init(logPath string) {
	if logPath == "" {
		logPath = "./logs/clickgate.log"
	}

	fileSink := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	sink := zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(fileSink))
	core := zapcore.NewCore(encoder, sink, zapcore.InfoLevel)

	Logger = zap.New(core, zap.AddCaller())
	Sugar = Logger.Sugar()
	zap.ReplaceGlobals(Logger)
}
