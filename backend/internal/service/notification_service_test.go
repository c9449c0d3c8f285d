package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/model"
)

// fakePusher 记录写入外发队列的消息
type fakePusher struct {
	mu    sync.Mutex
	key   string
	items [][]byte
	err   error
}

func (p *fakePusher) PushOutbox(_ context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.key = key
	p.items = append(p.items, payload)
	return nil
}

func samplePayload(typ, recipient string) NotificationPayload {
	return NotificationPayload{
		Type:        typ,
		RecipientID: recipient,
		ShiftID:     "shift-1",
		ClaimID:     "claim-1",
		ShiftDate:   "2026-03-10",
		StartTime:   "07:00",
		EndTime:     "19:00",
		Role:        "RN",
		ActorName:   "王主任",
	}
}

// ── Render ──

func TestNotificationPayload_Render(t *testing.T) {
	denied := samplePayload(model.NotificationShiftDenied, "u-1")
	denied.Reason = "人手已满"

	cases := []struct {
		payload NotificationPayload
		want    string
	}{
		{samplePayload(model.NotificationShiftClaimed, "u-1"), "王主任 申请了 2026-03-10 07:00-19:00 的 RN 班次"},
		{samplePayload(model.NotificationShiftApproved, "u-1"), "已通过审批"},
		{denied, "未通过：人手已满"},
		{samplePayload(model.NotificationShiftCancelled, "u-1"), "已被机构取消"},
		{samplePayload(model.NotificationShiftReminder, "u-1"), "仍无人认领"},
	}
	for _, tc := range cases {
		if got := tc.payload.Render(); !strings.Contains(got, tc.want) {
			t.Errorf("%s 渲染结果 %q 应包含 %q", tc.payload.Type, got, tc.want)
		}
	}
}

// ── Notify ──

func TestNotificationService_NotifyStoresAndDispatches(t *testing.T) {
	st := newMemStore()
	pusher := &fakePusher{}
	svc := NewNotificationService(newMockRepository(st), NewOutboxDispatcher(pusher, "notifications:outbox"), zap.NewNop())

	svc.Notify(context.Background(),
		samplePayload(model.NotificationShiftApproved, "u-1"),
		samplePayload(model.NotificationShiftApproved, ""), // 无收件人，跳过
	)

	if len(st.notifications) != 1 {
		t.Fatalf("期望写入 1 条站内通知，实际 %d", len(st.notifications))
	}
	for _, n := range st.notifications {
		if n.RecipientID != "u-1" || n.Type != model.NotificationShiftApproved {
			t.Errorf("站内通知内容不正确: %+v", n)
		}
		if n.RelatedID == nil || *n.RelatedID != "shift-1" {
			t.Errorf("站内通知应关联班次")
		}
		var stored NotificationPayload
		if err := json.Unmarshal(n.Payload, &stored); err != nil || stored.ClaimID != "claim-1" {
			t.Errorf("站内通知应保存结构化负载: %v", err)
		}
	}

	if pusher.key != "notifications:outbox" || len(pusher.items) != 1 {
		t.Fatalf("期望外发 1 条到 notifications:outbox，实际 %q %d", pusher.key, len(pusher.items))
	}
	var sent NotificationPayload
	if err := json.Unmarshal(pusher.items[0], &sent); err != nil {
		t.Fatalf("外发消息应为 JSON: %v", err)
	}
	if sent.RecipientID != "u-1" || sent.ShiftDate != "2026-03-10" {
		t.Errorf("外发消息内容不正确: %+v", sent)
	}
}

func TestNotificationService_DispatchFailureIsSwallowed(t *testing.T) {
	st := newMemStore()
	pusher := &fakePusher{err: errors.New("redis 不可用")}
	svc := NewNotificationService(newMockRepository(st), NewOutboxDispatcher(pusher, "outbox"), zap.NewNop())

	// 不 panic、不返回错误，站内通知照常写入
	svc.Notify(context.Background(), samplePayload(model.NotificationShiftDenied, "u-1"))
	if len(st.notifications) != 1 {
		t.Errorf("外发失败不应影响站内通知，实际 %d", len(st.notifications))
	}
}

func TestNotificationService_NilDispatcherFallsBackToLog(t *testing.T) {
	st := newMemStore()
	svc := NewNotificationService(newMockRepository(st), nil, zap.NewNop())
	svc.Notify(context.Background(), samplePayload(model.NotificationShiftReminder, "u-1"))
	if len(st.notifications) != 1 {
		t.Errorf("期望写入 1 条站内通知，实际 %d", len(st.notifications))
	}
}

// ── List / MarkRead ──

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	st := newMemStore()
	svc := NewNotificationService(newMockRepository(st), nil, zap.NewNop())
	ctx := context.Background()

	svc.Notify(ctx,
		samplePayload(model.NotificationShiftApproved, "u-1"),
		samplePayload(model.NotificationShiftDenied, "u-1"),
		samplePayload(model.NotificationShiftClaimed, "u-2"),
	)

	list, total, err := svc.List(ctx, &dto.NotificationListRequest{}, "u-1")
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("u-1 应有 2 条通知: %v %d", err, total)
	}

	target := list[0].ID
	if err := svc.MarkRead(ctx, target, "u-2"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("标记他人通知应返回 ErrNotificationNotFound，实际 %v", err)
	}
	if err := svc.MarkRead(ctx, "missing", "u-1"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("不存在的通知应返回 ErrNotificationNotFound，实际 %v", err)
	}
	if err := svc.MarkRead(ctx, target, "u-1"); err != nil {
		t.Fatalf("标记已读应成功: %v", err)
	}
	if err := svc.MarkRead(ctx, target, "u-1"); err != nil {
		t.Errorf("重复标记已读应幂等: %v", err)
	}

	unread, total, _ := svc.List(ctx, &dto.NotificationListRequest{UnreadOnly: true}, "u-1")
	if total != 1 || unread[0].ID == target {
		t.Errorf("未读过滤结果不正确: %d %+v", total, unread)
	}

	all, _, _ := svc.List(ctx, &dto.NotificationListRequest{}, "u-1")
	for _, n := range all {
		if n.ID == target && (!n.IsRead || n.ReadAt == nil) {
			t.Errorf("已读通知应记录已读时间: %+v", n)
		}
	}
}
