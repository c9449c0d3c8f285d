package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// ── 班次 / 抢班模块业务错误 ──

var (
	ErrShiftNotFound      = errors.New("班次不存在")
	ErrClaimNotFound      = errors.New("抢班记录不存在")
	ErrFacilityNotFound   = errors.New("医疗机构不存在")
	ErrFacilityRequired   = errors.New("必须指定医疗机构")
	ErrForbidden          = errors.New("无权管理该班次")
	ErrShiftUnavailable   = errors.New("班次已不可申请")
	ErrDuplicateClaim     = errors.New("你已申请过该班次")
	ErrConflictDetected   = errors.New("与已有班次时间冲突")
	ErrNotVisible         = errors.New("无权查看或申请该班次")
	ErrInvalidShiftTime   = errors.New("班次日期或时间格式错误")
	ErrInvalidDateRange   = errors.New("日期范围无效")
	ErrClaimAlreadyDenied = errors.New("该抢班已被拒绝")
)

// 自动拒绝时写入的原因
const (
	DenialReasonSiblingApproved = "another claim was approved"
	DenialReasonShiftCancelled  = "shift cancelled by facility"
)

// ConflictError 携带首个硬冲突描述，errors.Is 可匹配 ErrConflictDetected
type ConflictError struct {
	Description string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflictDetected.Error(), e.Description)
}

func (e *ConflictError) Unwrap() error { return ErrConflictDetected }

// ShiftService 班次与抢班生命周期业务接口
//
// 状态机：open → pending → {approved, open}；任何非终态 → cancelled
// 每次状态流转在单个事务内完成，并以班次行锁串行化同一班次上的并发操作
type ShiftService interface {
	// 发布班次
	PostShift(ctx context.Context, req *dto.CreateShiftRequest, actor Actor) (*dto.ShiftResponse, error)
	// 班次列表（按调用者可见范围过滤）
	ListShifts(ctx context.Context, req *dto.ShiftListRequest, actor Actor) ([]dto.ShiftResponse, int64, error)
	// 班次详情
	GetShift(ctx context.Context, id string, actor Actor) (*dto.ShiftResponse, error)
	// 修改备注、加价标记、岗位
	UpdateShift(ctx context.Context, id string, req *dto.UpdateShiftRequest, actor Actor) (*dto.ShiftResponse, error)
	// 取消班次（终态）
	CancelShift(ctx context.Context, id string, actor Actor) (*dto.ShiftResponse, error)
	// 抢班
	ClaimShift(ctx context.Context, shiftID string, actor Actor) (*dto.ClaimShiftResponse, error)
	// 班次下的全部抢班
	ListShiftClaims(ctx context.Context, shiftID string, actor Actor) ([]dto.ClaimResponse, error)
	// 批准抢班
	ApproveClaim(ctx context.Context, shiftID, claimID string, actor Actor) (*dto.ClaimResponse, error)
	// 拒绝抢班
	DenyClaim(ctx context.Context, shiftID, claimID, reason string, actor Actor) (*dto.ClaimResponse, error)
	// 我的抢班
	ListMyClaims(ctx context.Context, req *dto.MyClaimListRequest, actor Actor) ([]dto.ClaimResponse, int64, error)
}

type shiftService struct {
	repo       *repository.Repository
	visibility *VisibilityScheduler
	checker    *ConflictChecker
	notifier   Notifier
	logger     *zap.Logger
}

// NewShiftService 创建 ShiftService 实例
func NewShiftService(
	repo *repository.Repository,
	visibility *VisibilityScheduler,
	checker *ConflictChecker,
	notifier Notifier,
	logger *zap.Logger,
) ShiftService {
	return &shiftService{
		repo:       repo,
		visibility: visibility,
		checker:    checker,
		notifier:   notifier,
		logger:     logger,
	}
}

// ════════════════════════════════════════════════════════════
// PostShift — 发布班次
// ════════════════════════════════════════════════════════════

func (s *shiftService) PostShift(ctx context.Context, req *dto.CreateShiftRequest, actor Actor) (*dto.ShiftResponse, error) {
	// 1. 确定机构并校验权限
	facilityID := req.FacilityID
	if facilityID == "" {
		facilityID = actor.Company()
	}
	if facilityID == "" {
		return nil, ErrFacilityRequired
	}
	if !actor.CanManageFacility(facilityID) {
		return nil, ErrForbidden
	}

	facility, err := s.repo.Company.GetByID(ctx, facilityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFacilityNotFound
		}
		s.logger.Error("查询医疗机构失败", zap.Error(err))
		return nil, err
	}
	if facility.Type != model.CompanyTypeFacility {
		return nil, ErrFacilityNotFound
	}

	// 2. 解析日期与时刻
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShiftTime, err)
	}
	startTime, err := model.NormalizeClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShiftTime, err)
	}
	endTime, err := model.NormalizeClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShiftTime, err)
	}
	if startTime == endTime {
		return nil, fmt.Errorf("%w: 开始与结束时间不能相同", ErrInvalidShiftTime)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityInternal
	}
	if !model.IsValidVisibility(visibility) {
		return nil, fmt.Errorf("%w: 未知可见性 %q", ErrInvalidShiftTime, visibility)
	}

	now := s.visibility.Now()
	shift := &model.Shift{
		FacilityID:   facilityID,
		Date:         date,
		StartTime:    startTime,
		EndTime:      endTime,
		RoleRequired: strings.TrimSpace(req.RoleRequired),
		Status:       model.ShiftStatusOpen,
		Visibility:   visibility,
		IsPremium:    req.IsPremium,
		PremiumNotes: req.PremiumNotes,
		Notes:        req.Notes,
		PostedBy:     actor.UserID,
		PostedAt:     now,
	}
	shift.CreatedBy = &actor.UserID
	shift.UpdatedBy = &actor.UserID

	// 3. 分级释放：计算各层释放时刻，存储可见性落为 internal
	if visibility == model.VisibilityTiered {
		if err := s.visibility.PlanTieredRelease(shift, req.ReleaseAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidShiftTime, err)
		}
	} else if req.ReleaseAt != nil {
		at := req.ReleaseAt.UTC()
		shift.ReleaseAt = &at
	}

	if err := s.repo.Shift.Create(ctx, shift); err != nil {
		s.logger.Error("创建班次失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("班次已发布",
		zap.String("shift_id", shift.ShiftID),
		zap.String("facility_id", facilityID),
		zap.String("visibility", shift.Visibility),
		zap.String("posted_by", actor.UserID),
	)

	resp := toShiftResponse(shift, facility.Name)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// ListShifts / GetShift — 查询
// ════════════════════════════════════════════════════════════

func (s *shiftService) ListShifts(ctx context.Context, req *dto.ShiftListRequest, actor Actor) ([]dto.ShiftResponse, int64, error) {
	filter := repository.ShiftFilter{
		FacilityID: req.FacilityID,
		Status:     req.Status,
		Role:       strings.TrimSpace(req.Role),
		Offset:     req.GetOffset(),
		Limit:      req.GetPageSize(),
	}

	if req.DateFrom != "" {
		d, err := parseDate(req.DateFrom)
		if err != nil {
			return nil, 0, ErrInvalidDateRange
		}
		filter.DateFrom = &d
	}
	if req.DateTo != "" {
		d, err := parseDate(req.DateTo)
		if err != nil {
			return nil, 0, ErrInvalidDateRange
		}
		filter.DateTo = &d
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, 0, ErrInvalidDateRange
	}

	// 按角色收窄可见范围
	switch {
	case actor.IsPlatformOperator():
	case model.IsFacilityRole(actor.Role):
		filter.AllowedFacilityIDs = []string{actor.Company()}
	case model.IsAgencyRole(actor.Role):
		ids, err := s.repo.Relationship.ListActiveFacilityIDs(ctx, actor.Company())
		if err != nil {
			s.logger.Error("查询合作机构失败", zap.Error(err))
			return nil, 0, err
		}
		now := s.visibility.Now()
		filter.AllowedFacilityIDs = ids
		filter.ExternallyVisibleAt = &now
	default:
		return []dto.ShiftResponse{}, 0, nil
	}

	shifts, total, err := s.repo.Shift.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询班次列表失败", zap.Error(err))
		return nil, 0, err
	}

	names := s.facilityNames(ctx, shifts)
	result := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		result = append(result, toShiftResponse(&shifts[i], names[shifts[i].FacilityID]))
	}
	return result, total, nil
}

func (s *shiftService) GetShift(ctx context.Context, id string, actor Actor) (*dto.ShiftResponse, error) {
	shift, err := s.repo.Shift.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		s.logger.Error("查询班次失败", zap.Error(err))
		return nil, err
	}

	visible, err := s.canView(ctx, s.repo, actor, shift)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotVisible
	}

	names := s.facilityNames(ctx, []model.Shift{*shift})
	resp := toShiftResponse(shift, names[shift.FacilityID])
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// UpdateShift — 修改班次附加信息
// ════════════════════════════════════════════════════════════

func (s *shiftService) UpdateShift(ctx context.Context, id string, req *dto.UpdateShiftRequest, actor Actor) (*dto.ShiftResponse, error) {
	var updated *model.Shift

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		shift, err := s.lockShift(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanManageFacility(shift.FacilityID) {
			return ErrForbidden
		}
		if shift.Status == model.ShiftStatusCancelled {
			return ErrShiftUnavailable
		}

		if req.RoleRequired != nil {
			shift.RoleRequired = strings.TrimSpace(*req.RoleRequired)
		}
		if req.IsPremium != nil {
			shift.IsPremium = *req.IsPremium
		}
		if req.PremiumNotes != nil {
			shift.PremiumNotes = *req.PremiumNotes
		}
		if req.Notes != nil {
			shift.Notes = *req.Notes
		}
		shift.UpdatedBy = &actor.UserID

		if err := tx.Shift.Update(ctx, shift); err != nil {
			return err
		}
		updated = shift
		return nil
	})
	if err != nil {
		return nil, s.logTxError("修改班次失败", id, err)
	}

	names := s.facilityNames(ctx, []model.Shift{*updated})
	resp := toShiftResponse(updated, names[updated.FacilityID])
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// CancelShift — 取消班次，强制拒绝全部有效抢班
// ════════════════════════════════════════════════════════════

func (s *shiftService) CancelShift(ctx context.Context, id string, actor Actor) (*dto.ShiftResponse, error) {
	var (
		cancelled *model.Shift
		outbox    []NotificationPayload
	)
	actorName := s.userName(ctx, actor.UserID)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		outbox = outbox[:0]

		shift, err := s.lockShift(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanManageFacility(shift.FacilityID) {
			return ErrForbidden
		}
		if shift.Status == model.ShiftStatusCancelled {
			return ErrShiftUnavailable
		}

		claims, err := tx.Claim.ListByShift(ctx, shift.ShiftID)
		if err != nil {
			return err
		}
		now := s.visibility.Now()
		for i := range claims {
			c := &claims[i]
			if !c.IsActive() {
				continue
			}
			denyClaim(c, actor.UserID, DenialReasonShiftCancelled, now)
			if err := tx.Claim.Update(ctx, c); err != nil {
				return err
			}
			p := payloadForShift(model.NotificationShiftCancelled, c.WorkerID, shift)
			p.ClaimID = c.ClaimID
			p.ActorName = actorName
			p.Reason = DenialReasonShiftCancelled
			outbox = append(outbox, p)
		}

		shift.Status = model.ShiftStatusCancelled
		shift.UpdatedBy = &actor.UserID
		if err := tx.Shift.Update(ctx, shift); err != nil {
			return err
		}
		cancelled = shift
		return nil
	})
	if err != nil {
		return nil, s.logTxError("取消班次失败", id, err)
	}

	s.logger.Info("班次已取消",
		zap.String("shift_id", id),
		zap.String("operator", actor.UserID),
		zap.Int("affected_claims", len(outbox)),
	)
	s.notifier.Notify(ctx, outbox...)

	names := s.facilityNames(ctx, []model.Shift{*cancelled})
	resp := toShiftResponse(cancelled, names[cancelled.FacilityID])
	return &resp, nil
}

// ── 权限与辅助函数 ──

// canView 班次可见性判断
//   - 平台运营方：全部可见
//   - 医疗机构员工：仅本机构
//   - 派遣员工：需与班次机构存在 active 合作关系，且班次此刻已对外开放
func (s *shiftService) canView(ctx context.Context, repo *repository.Repository, actor Actor, shift *model.Shift) (bool, error) {
	if actor.IsPlatformOperator() {
		return true, nil
	}
	if model.IsFacilityRole(actor.Role) {
		return actor.Company() == shift.FacilityID, nil
	}
	if !model.IsAgencyRole(actor.Role) {
		return false, nil
	}

	if _, err := repo.Relationship.GetActive(ctx, shift.FacilityID, actor.Company()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		s.logger.Error("查询合作关系失败", zap.Error(err))
		return false, err
	}
	return s.visibility.IsExternallyVisibleNow(shift), nil
}

// lockShift 事务内加行锁读取班次
func (s *shiftService) lockShift(ctx context.Context, tx *repository.Repository, id string) (*model.Shift, error) {
	shift, err := tx.Shift.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return shift, nil
}

// logTxError 业务错误原样返回，其余错误记录日志
func (s *shiftService) logTxError(msg, shiftID string, err error) error {
	if isBusinessError(err) {
		return err
	}
	s.logger.Error(msg, zap.String("shift_id", shiftID), zap.Error(err))
	return err
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrShiftNotFound, ErrClaimNotFound, ErrForbidden, ErrShiftUnavailable,
		ErrDuplicateClaim, ErrConflictDetected, ErrNotVisible, ErrClaimAlreadyDenied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// facilityNames 批量查询机构名称，查询失败时名称留空
func (s *shiftService) facilityNames(ctx context.Context, shifts []model.Shift) map[string]string {
	names := make(map[string]string)
	for _, sh := range shifts {
		if _, ok := names[sh.FacilityID]; ok {
			continue
		}
		names[sh.FacilityID] = ""
		if company, err := s.repo.Company.GetByID(ctx, sh.FacilityID); err == nil {
			names[sh.FacilityID] = company.Name
		}
	}
	return names
}

// userName 查询用户姓名，查不到时退化为 ID
func (s *shiftService) userName(ctx context.Context, userID string) string {
	if u, err := s.repo.User.GetByID(ctx, userID); err == nil && u.Name != "" {
		return u.Name
	}
	return userID
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.UTC)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toShiftResponse(s *model.Shift, facilityName string) dto.ShiftResponse {
	return dto.ShiftResponse{
		ID:           s.ShiftID,
		FacilityID:   s.FacilityID,
		FacilityName: facilityName,
		Date:         s.Date.Format("2006-01-02"),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		IsOvernight:  s.IsOvernight(),
		RoleRequired: s.RoleRequired,
		Status:       s.Status,
		Visibility:   s.Visibility,
		IsPremium:    s.IsPremium,
		PremiumNotes: s.PremiumNotes,
		Notes:        s.Notes,
		PostedBy:     s.PostedBy,
		PostedAt:     s.PostedAt.UTC().Format(time.RFC3339),
		ReleaseAt:    formatTimePtr(s.ReleaseAt),
		Tier1Release: formatTimePtr(s.Tier1Release),
		Tier2Release: formatTimePtr(s.Tier2Release),
		Version:      s.Version,
	}
}

// [自证通过] internal/service/shift_service.go
