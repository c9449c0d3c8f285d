package service

import (
	"errors"
	"testing"
	"time"

	"github.com/TrustEden/Staffing/backend/internal/model"
)

// ── 测试辅助 ──

func testShift(id, date, start, end string) model.Shift {
	d, _ := time.Parse("2006-01-02", date)
	return model.Shift{ShiftID: id, Date: d, StartTime: start, EndTime: end, Status: model.ShiftStatusOpen}
}

func held(shift model.Shift, status string) model.ClaimWithShift {
	return model.ClaimWithShift{
		Claim: model.Claim{ClaimID: "c-" + shift.ShiftID, ShiftID: shift.ShiftID, WorkerID: "w-1", Status: status},
		Shift: shift,
	}
}

// ── Overlaps ──

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"包含", at(7, 0), at(19, 0), at(12, 0), at(13, 0), true},
		{"部分重叠", at(7, 0), at(19, 0), at(18, 0), at(20, 0), true},
		{"首尾相接", at(7, 0), at(19, 0), at(19, 0), at(23, 0), false},
		{"完全分离", at(7, 0), at(12, 0), at(13, 0), at(15, 0), false},
		{"相同区间", at(7, 0), at(19, 0), at(7, 0), at(19, 0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps(a,b) = %v，期望 %v", got, tc.want)
			}
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Errorf("Overlaps(b,a) = %v，期望 %v（应对称）", got, tc.want)
			}
		})
	}
}

// ── Check ──

func TestConflictChecker_HardConflict(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	a := testShift("A", "2026-03-10", "07:00", "19:00")
	b := testShift("B", "2026-03-10", "12:00", "20:00")

	res, err := checker.Check(&b, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if err != nil {
		t.Fatalf("检测不应出错: %v", err)
	}
	if !res.HasConflict() || len(res.HardConflicts) != 1 {
		t.Errorf("期望 1 条硬冲突，实际 %+v", res)
	}
}

func TestConflictChecker_PendingCountsAsCommitment(t *testing.T) {
	checker := NewConflictChecker(0)
	a := testShift("A", "2026-03-10", "07:00", "19:00")
	b := testShift("B", "2026-03-10", "08:00", "09:00")

	res, _ := checker.Check(&b, []model.ClaimWithShift{held(a, model.ClaimStatusPending)})
	if !res.HasConflict() {
		t.Error("pending 抢班同样应参与冲突检测")
	}

	res, _ = checker.Check(&b, []model.ClaimWithShift{held(a, model.ClaimStatusDenied)})
	if res.HasConflict() {
		t.Error("denied 抢班不应参与冲突检测")
	}
}

func TestConflictChecker_BackToBackBothOrders(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	a := testShift("A", "2026-03-10", "07:00", "19:00")

	after := testShift("C", "2026-03-10", "19:30", "23:00")
	res, _ := checker.Check(&after, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if res.HasConflict() || len(res.Warnings) != 1 {
		t.Errorf("候选在后、间隔 30 分钟应只产生警告，实际 %+v", res)
	}

	before := testShift("D", "2026-03-10", "03:00", "06:15")
	res, _ = checker.Check(&before, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if res.HasConflict() || len(res.Warnings) != 1 {
		t.Errorf("候选在前、间隔 45 分钟应只产生警告，实际 %+v", res)
	}

	far := testShift("E", "2026-03-10", "20:00", "23:00")
	res, _ = checker.Check(&far, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if len(res.Warnings) != 0 {
		t.Errorf("间隔恰为阈值不应警告，实际 %v", res.Warnings)
	}
}

func TestConflictChecker_ZeroGapWarnsOnly(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	a := testShift("A", "2026-03-10", "07:00", "19:00")
	b := testShift("B", "2026-03-10", "19:00", "23:00")

	res, _ := checker.Check(&b, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if res.HasConflict() {
		t.Error("首尾相接不算重叠")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("零间隔应产生警告，实际 %v", res.Warnings)
	}
}

func TestConflictChecker_ThresholdDisabled(t *testing.T) {
	checker := NewConflictChecker(0)
	a := testShift("A", "2026-03-10", "07:00", "19:00")
	b := testShift("B", "2026-03-10", "19:00", "23:00")

	res, _ := checker.Check(&b, []model.ClaimWithShift{held(a, model.ClaimStatusApproved)})
	if len(res.Warnings) != 0 {
		t.Errorf("阈值为 0 时不应警告，实际 %v", res.Warnings)
	}
}

func TestConflictChecker_OvernightAcrossDays(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	night := testShift("N", "2026-03-10", "22:00", "06:00")
	early := testShift("M", "2026-03-11", "05:30", "08:00")
	prev := testShift("P", "2026-03-10", "14:00", "21:30")

	res, _ := checker.Check(&early, []model.ClaimWithShift{held(night, model.ClaimStatusApproved)})
	if !res.HasConflict() {
		t.Error("跨夜班应与次日清晨班次冲突")
	}

	res, _ = checker.Check(&prev, []model.ClaimWithShift{held(night, model.ClaimStatusApproved)})
	if res.HasConflict() || len(res.Warnings) != 1 {
		t.Errorf("跨夜班开始前 30 分钟结束的班次只应警告，实际 %+v", res)
	}
}

func TestConflictChecker_SkipsSameShift(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	a := testShift("A", "2026-03-10", "07:00", "19:00")

	res, _ := checker.Check(&a, []model.ClaimWithShift{held(a, model.ClaimStatusPending)})
	if res.HasConflict() || len(res.Warnings) != 0 {
		t.Errorf("候选班次自身的抢班不应计入，实际 %+v", res)
	}
}

func TestConflictChecker_InvalidTime(t *testing.T) {
	checker := NewConflictChecker(60 * time.Minute)
	bad := testShift("X", "2026-03-10", "7h", "19:00")

	if _, err := checker.Check(&bad, nil); !errors.Is(err, ErrInvalidShiftTime) {
		t.Errorf("期望 ErrInvalidShiftTime，实际 %v", err)
	}
}
