// Package logger 命令行进程使用的 zap 日志
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "wxpay"

var log *zap.Logger

// New 按运行环境创建日志
// 参数:
//   - env: 运行环境，production 输出JSON到标准输出，其余输出带颜色的控制台格式到标准错误
//
// 返回:
//   - *zap.Logger: 带 service 字段的日志
//   - error: 日志配置构建失败
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.OutputPaths = []string{"stdout"}
	}

	return cfg.Build(zap.AddCaller(), zap.Fields(zap.String("service", serviceName), zap.String("env", env)))
}

// Init 初始化进程日志，构建失败时退回到 zap.NewNop，不中断命令执行
func Init(env string) {
	l, err := New(env)
	if err != nil {
		l = zap.NewNop()
	}
	log = l
}

// L 返回进程日志，首次调用时按 APP_ENV 初始化
func L() *zap.Logger {
	if log == nil {
		Init(os.Getenv("APP_ENV"))
	}
	return log
}

// Sync 刷新缓冲的日志
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}
