package model

import "time"

// 抢班状态
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusDenied   = "denied"
)

// Claim 抢班记录表 — 对应 claims
// (shift_id, worker_id) 唯一；同一班次同一时刻至多一条 approved
type Claim struct {
	ClaimID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"claim_id"`
	ShiftID      string     `gorm:"type:uuid;not null"                             json:"shift_id"`
	WorkerID     string     `gorm:"type:uuid;not null"                             json:"worker_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"` // pending | approved | denied
	ClaimedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"claimed_at"`
	ApprovedBy   *string    `gorm:"type:uuid"                                      json:"approved_by,omitempty"` // 批准或拒绝的操作人
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	DenialReason *string    `gorm:"type:text"                                      json:"denial_reason,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Claim) TableName() string { return "claims" }

// IsActive pending 与 approved 视为占用工作者时间的有效承诺
func (c *Claim) IsActive() bool {
	return c.Status == ClaimStatusPending || c.Status == ClaimStatusApproved
}

// ClaimWithShift 抢班记录 + 所属班次（查询投影，不是 ORM 关联）
type ClaimWithShift struct {
	Claim Claim
	Shift Shift
}
