package dto

// ── 抢班模块 DTO ──

// DenyClaimRequest 拒绝抢班请求
type DenyClaimRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// MyClaimListRequest 我的抢班列表查询参数
type MyClaimListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved denied"`
	PaginationRequest
}

// ── 响应 ──

// ClaimResponse 抢班记录响应
type ClaimResponse struct {
	ID           string         `json:"id"`
	ShiftID      string         `json:"shift_id"`
	Worker       *UserBrief     `json:"worker,omitempty"`
	WorkerID     string         `json:"worker_id"`
	Status       string         `json:"status"`
	ClaimedAt    string         `json:"claimed_at"`
	ApprovedBy   *string        `json:"approved_by,omitempty"`
	DecidedAt    *string        `json:"decided_at,omitempty"`
	DenialReason *string        `json:"denial_reason,omitempty"`
	Shift        *ShiftResponse `json:"shift,omitempty"`
}

// ClaimShiftResponse 抢班结果：新建的抢班记录 + 连班软警告
type ClaimShiftResponse struct {
	Claim    ClaimResponse `json:"claim"`
	Warnings []string      `json:"warnings"`
}

// [自证通过] internal/dto/claim.go
