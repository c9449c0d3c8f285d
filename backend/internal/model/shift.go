package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 班次状态
// open → pending → {approved, open}；任何非终态 → cancelled（终态）
const (
	ShiftStatusOpen      = "open"
	ShiftStatusPending   = "pending"
	ShiftStatusApproved  = "approved"
	ShiftStatusCancelled = "cancelled"
)

// 班次可见性：internal < tier_1 < tier_2 < agency/all
// tiered 仅在创建时作为选择器使用，入库时落为 internal 并由定时任务逐级放开
const (
	VisibilityInternal = "internal"
	VisibilityTier1    = "tier_1"
	VisibilityTier2    = "tier_2"
	VisibilityAgency   = "agency"
	VisibilityAll      = "all"
	VisibilityTiered   = "tiered"
)

// visibilityRank 可见性等级，数值越大开放范围越广
var visibilityRank = map[string]int{
	VisibilityInternal: 0,
	VisibilityTier1:    1,
	VisibilityTier2:    2,
	VisibilityAgency:   3,
	VisibilityAll:      3,
}

// VisibilityRank 返回可见性等级；未知或 tiered 返回 -1
func VisibilityRank(v string) int {
	if r, ok := visibilityRank[v]; ok {
		return r
	}
	return -1
}

// IsValidVisibility 是否为合法的创建时可见性
func IsValidVisibility(v string) bool {
	return v == VisibilityTiered || VisibilityRank(v) >= 0
}

// Shift 班次表 — 对应 shifts
type Shift struct {
	ShiftID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_id"`
	FacilityID   string     `gorm:"type:uuid;not null"                             json:"facility_id"`
	Date         time.Time  `gorm:"type:date;not null"                             json:"date"`
	StartTime    string     `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndTime      string     `gorm:"type:varchar(5);not null"                       json:"end_time"`   // HH:MM，小于 StartTime 表示跨夜
	RoleRequired string     `gorm:"type:varchar(100);not null"                     json:"role_required"`
	Status       string     `gorm:"type:varchar(20);not null;default:'open'"       json:"status"`     // open | pending | approved | cancelled
	Visibility   string     `gorm:"type:varchar(20);not null;default:'internal'"   json:"visibility"` // internal | tier_1 | tier_2 | agency | all
	IsPremium    bool       `gorm:"not null;default:false"                         json:"is_premium"`
	PremiumNotes string     `gorm:"type:text"                                      json:"premium_notes,omitempty"`
	Notes        string     `gorm:"type:text"                                      json:"notes,omitempty"`
	PostedBy     string     `gorm:"type:uuid;not null"                             json:"posted_by"`
	PostedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"posted_at"`
	ReleaseAt    *time.Time `json:"release_at,omitempty"`
	Tier1Release *time.Time `gorm:"column:tier_1_release"                          json:"tier_1_release,omitempty"`
	Tier2Release *time.Time `gorm:"column:tier_2_release"                          json:"tier_2_release,omitempty"`
	// RemindedAt 开班提醒的发送标记，非空即不再提醒
	RemindedAt   *time.Time `gorm:"column:reminded_at"                             json:"-"`
	VersionedModel
}

// TableName 指定表名
func (Shift) TableName() string { return "shifts" }

// IsTerminal 班次是否已不接受抢班
func (s *Shift) IsTerminal() bool {
	return s.Status == ShiftStatusApproved || s.Status == ShiftStatusCancelled
}

// IsOvernight 结束时间早于开始时间即为跨夜班
func (s *Shift) IsOvernight() bool {
	return s.EndTime < s.StartTime
}

// IsTieredPending 分级释放班次，尚停留在 internal 等待定时任务放开
func (s *Shift) IsTieredPending() bool {
	if s.Visibility == VisibilityTiered {
		return true
	}
	return s.Visibility == VisibilityInternal && s.Tier1Release != nil
}

// Window 计算班次的绝对起止时刻 [start, end)
// 日期与时刻均按 UTC 组合；跨夜班的结束时刻落在 date+1
func (s *Shift) Window() (time.Time, time.Time, error) {
	start, err := CombineDateClock(s.Date, s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := CombineDateClock(s.Date, s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if s.IsOvernight() {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// StartInstant 班次开始的绝对时刻
func (s *Shift) StartInstant() (time.Time, error) {
	return CombineDateClock(s.Date, s.StartTime)
}

// ParseClock 解析 HH:MM（兼容 HH:MM:SS）墙钟时刻
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("无效的时刻 %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("无效的小时 %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("无效的分钟 %q", clock)
	}
	return hour, minute, nil
}

// NormalizeClock 将时刻规整为 HH:MM
func NormalizeClock(clock string) (string, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// CombineDateClock 日期 + 墙钟时刻 → UTC 绝对时刻
func CombineDateClock(date time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, time.UTC), nil
}
