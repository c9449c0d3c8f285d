package model

import "time"

// 机构类型
const (
	CompanyTypeFacility = "facility"
	CompanyTypeAgency   = "agency"
)

// 机构合作关系状态
const (
	RelationshipInvited = "invited"
	RelationshipActive  = "active"
	RelationshipRevoked = "revoked"
)

// Company 机构表 — 对应 companies（医疗机构 / 派遣机构）
type Company struct {
	CompanyID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"company_id"`
	DisplayID string `gorm:"type:varchar(20);not null"                      json:"display_id"` // FAC-00001 | AGY-00001
	Name      string `gorm:"type:varchar(255);not null"                     json:"name"`
	Type      string `gorm:"type:varchar(20);not null"                      json:"type"` // facility | agency
	Timezone  string `gorm:"type:varchar(50);default:'UTC'"                 json:"timezone,omitempty"`
	IsLocked  bool   `gorm:"not null;default:false"                         json:"is_locked"`
	BaseModel
}

// TableName 指定表名
func (Company) TableName() string { return "companies" }

// Relationship 机构合作关系表 — 对应 relationships
// 医疗机构与派遣机构之间存在 active 关系时，派遣员工才能看到对外开放的班次
type Relationship struct {
	RelationshipID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"relationship_id"`
	FacilityID       string     `gorm:"type:uuid;not null"                             json:"facility_id"`
	AgencyID         string     `gorm:"type:uuid;not null"                             json:"agency_id"`
	Status           string     `gorm:"type:varchar(20);not null"                      json:"status"` // invited | active | revoked
	InvitedBy        *string    `gorm:"type:uuid"                                      json:"invited_by,omitempty"`
	InviteAcceptedAt *time.Time `json:"invite_accepted_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Relationship) TableName() string { return "relationships" }
