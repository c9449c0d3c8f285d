package model

// 用户角色
const (
	RoleAdmin       = "admin"        // 医疗机构管理员
	RoleStaff       = "staff"        // 医疗机构内部员工
	RoleAgencyAdmin = "agency_admin" // 派遣机构管理员
	RoleAgencyStaff = "agency_staff" // 派遣机构员工
)

// User 用户表 — 对应 users
// 由外部身份服务维护，本服务只读
type User struct {
	UserID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name      string  `gorm:"type:varchar(255);not null"                     json:"name"`
	Email     string  `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Phone     string  `gorm:"type:varchar(50)"                               json:"phone,omitempty"`
	Role      string  `gorm:"type:varchar(20);not null"                      json:"role"`
	CompanyID *string `gorm:"type:uuid"                                      json:"company_id,omitempty"` // 为空表示平台运营方
	IsActive  bool    `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsAgencyRole 是否为派遣机构侧角色
func IsAgencyRole(role string) bool {
	return role == RoleAgencyAdmin || role == RoleAgencyStaff
}

// IsFacilityRole 是否为医疗机构侧角色
func IsFacilityRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// [自证通过] internal/model/user.go
