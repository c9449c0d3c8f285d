package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/internal/model"
)

func seedOpenShift(st *memStore, date, start, status string) string {
	shift := testShift("", date, start, "23:59")
	shift.FacilityID = "fac-1"
	shift.RoleRequired = "RN"
	shift.Status = status
	st.putShift(&shift)
	return shift.ShiftID
}

func newTestReminder(e *testEnv) ReminderService {
	return NewReminderService(e.repo, e.notifier, testSchedulingConfig(), e.clock, zap.NewNop())
}

func TestReminderService_RemindsOpenShiftsInWindow(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReminder(e)

	due := seedOpenShift(e.st, "2026-03-10", "08:00", model.ShiftStatusOpen)
	seedOpenShift(e.st, "2026-03-10", "08:00", model.ShiftStatusPending) // 已有人申请
	seedOpenShift(e.st, "2026-03-10", "09:00", model.ShiftStatusOpen)    // 不在窗口内

	// 窗口 [03-10 07:30, 03-10 08:30)
	sent, err := svc.SendDueRemindersAt(context.Background(), time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("提醒不应出错: %v", err)
	}
	if sent != 1 {
		t.Fatalf("期望发出 1 条提醒（fac-1 仅一名管理员），实际 %d", sent)
	}
	reminders := e.notifier.byType(model.NotificationShiftReminder)
	if reminders[0].ShiftID != due || reminders[0].RecipientID != "admin-1" {
		t.Errorf("提醒对象不正确: %+v", reminders[0])
	}
}

func TestReminderService_AdjacentRunsRemindOnce(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReminder(e)
	ctx := context.Background()

	seedOpenShift(e.st, "2026-03-10", "08:30", model.ShiftStatusOpen)

	first, _ := svc.SendDueRemindersAt(ctx, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	second, _ := svc.SendDueRemindersAt(ctx, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC))
	if first+second != 1 {
		t.Errorf("相邻两次执行应恰好提醒一次，实际 %d + %d", first, second)
	}
}

func TestReminderService_WindowAcrossMidnight(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReminder(e)

	seedOpenShift(e.st, "2026-03-09", "23:50", model.ShiftStatusOpen)
	seedOpenShift(e.st, "2026-03-10", "00:30", model.ShiftStatusOpen)

	// 窗口 [03-09 23:40, 03-10 00:40)
	sent, err := svc.SendDueRemindersAt(context.Background(), time.Date(2026, 3, 9, 0, 10, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("提醒不应出错: %v", err)
	}
	if sent != 2 {
		t.Errorf("跨日窗口内的 2 个班次都应提醒，实际 %d", sent)
	}
}

func TestReminderService_OverlappingRunsRemindOnce(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReminder(e)
	ctx := context.Background()

	shiftID := seedOpenShift(e.st, "2026-03-10", "08:25", model.ShiftStatusOpen)

	// 第二次执行提前 0.1 个周期：窗口 [07:30, 08:30) 与 [08:24, 09:24) 都覆盖 08:25
	first, err := svc.SendDueRemindersAt(ctx, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("提醒不应出错: %v", err)
	}
	second, err := svc.SendDueRemindersAt(ctx, time.Date(2026, 3, 9, 8, 54, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("提醒不应出错: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("重叠窗口内的班次只应提醒一次，实际 %d + %d", first, second)
	}
	if got := len(e.notifier.byType(model.NotificationShiftReminder)); got != 1 {
		t.Errorf("期望 1 条提醒通知，实际 %d", got)
	}
	if e.st.shift(shiftID).RemindedAt == nil {
		t.Error("提醒后应写入提醒标记")
	}
}

func TestReminderService_ConcurrentReplicasRemindOnce(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReminder(e)
	ctx := context.Background()

	seedOpenShift(e.st, "2026-03-10", "08:10", model.ShiftStatusOpen)
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var total int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _ := svc.SendDueRemindersAt(ctx, now)
			atomic.AddInt64(&total, int64(n))
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Errorf("并发执行只应提醒一次，实际 %d", total)
	}
}
