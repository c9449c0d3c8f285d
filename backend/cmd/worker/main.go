package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/config"
	"github.com/TrustEden/Staffing/backend/internal/repository"
	"github.com/TrustEden/Staffing/backend/internal/service"
	"github.com/TrustEden/Staffing/backend/internal/worker"
	"github.com/TrustEden/Staffing/backend/pkg/database"
	applogger "github.com/TrustEden/Staffing/backend/pkg/logger"
	"github.com/TrustEden/Staffing/backend/pkg/redis"
)

// 周期任务进程：可见性分级释放扫描 + 开班提醒
// 可与 server 分开部署多副本，每个周期通过 Redis 锁只执行一次
func main() {
	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log, applogger.ProcessWorker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	// Redis 同时承担任务锁与通知外发；不可达时调度器降级为 no-op
	var (
		scheduler  worker.Scheduler
		dispatcher service.Dispatcher
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 不可达，周期任务不会执行", zap.Error(err))
		scheduler = worker.NewNoopScheduler(logger)
		dispatcher = service.NewLogDispatcher(logger)
	} else {
		defer rdb.Close()
		scheduler = worker.NewRedisScheduler(rdb, logger)
		dispatcher = service.NewOutboxDispatcher(rdb, cfg.Notification.OutboxKey)
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, dispatcher, service.SystemClock(), logger)

	if err := worker.RegisterDefaultJobs(scheduler, svc, &cfg.Scheduling, logger); err != nil {
		logger.Fatal("注册周期任务失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker 已启动",
		zap.Bool("scheduler_enabled", scheduler.Enabled()),
		zap.Duration("sweep_interval", cfg.Scheduling.SweepInterval),
		zap.Duration("reminder_interval", cfg.Scheduling.ReminderInterval),
	)

	scheduler.Start(ctx)

	logger.Info("worker 已退出")
}
