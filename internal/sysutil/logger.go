package sysutil

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Hara602/cordID/internal/config"
)

var Log = zap.NewNop()
var LogSugar = Log.Sugar()

// InitLogger 控制台输出（彩色级别 + 行号），可选同时写入滚动日志文件
func InitLogger(cfg config.LoggingConfig) {
	encCfg := zap.NewDevelopmentConfig().EncoderConfig
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder // 格式化时间输出

	var consoleEnc zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := ParseLevel(cfg.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stdout), level),
	}

	// 文件日志不带颜色，由 lumberjack 负责滚动
	if cfg.File.Path != "" {
		fileCfg := encCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	LogSugar = Log.Sugar()
}

// ParseLevel 未识别时为 info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
