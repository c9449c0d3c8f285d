package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TrustEden/Staffing/backend/config"
)

// 进程标识：server / worker / bridgectl 共用同一份配置，日志中以 process 字段区分
const (
	ProcessServer    = "server"
	ProcessWorker    = "worker"
	ProcessBridgectl = "bridgectl"
)

const serviceName = "staffing-bridge"

// NewLogger 根据配置初始化 Zap 日志实例，附带 service 与 process 字段
// 时间统一输出为 UTC ISO8601，与班次时间、释放时刻的存储时区一致
func NewLogger(cfg *config.LogConfig, process string) (*zap.Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "time"
	}
	zapCfg.EncoderConfig.EncodeTime = utcISO8601

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("process", process),
	))
	if err != nil {
		return nil, fmt.Errorf("初始化日志器失败: %w", err)
	}

	return logger, nil
}

func utcISO8601(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	zapcore.ISO8601TimeEncoder(t.UTC(), enc)
}
