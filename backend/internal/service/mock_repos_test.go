package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
	pkgerrors "github.com/TrustEden/Staffing/backend/pkg/errors"
)

// memStore 内存数据源
// txMu 串行化事务；mu 保护各 map 的读写；事务出错时用快照回滚
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  int

	shifts        map[string]*model.Shift
	claims        map[string]*model.Claim
	companies     map[string]*model.Company
	relationships []model.Relationship
	users         map[string]*model.User
	notifications map[string]*model.Notification

	// 故障注入
	failPromote     map[string]bool
	failClaimUpdate map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		shifts:          make(map[string]*model.Shift),
		claims:          make(map[string]*model.Claim),
		companies:       make(map[string]*model.Company),
		users:           make(map[string]*model.User),
		notifications:   make(map[string]*model.Notification),
		failPromote:     make(map[string]bool),
		failClaimUpdate: make(map[string]bool),
	}
}

func (st *memStore) nextID(prefix string) string {
	st.seq++
	return fmt.Sprintf("%s-%d", prefix, st.seq)
}

type memSnapshot struct {
	shifts map[string]model.Shift
	claims map[string]model.Claim
}

func (st *memStore) snapshot() memSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := memSnapshot{
		shifts: make(map[string]model.Shift, len(st.shifts)),
		claims: make(map[string]model.Claim, len(st.claims)),
	}
	for id, s := range st.shifts {
		snap.shifts[id] = *s
	}
	for id, c := range st.claims {
		snap.claims[id] = *c
	}
	return snap
}

func (st *memStore) restore(snap memSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.shifts = make(map[string]*model.Shift, len(snap.shifts))
	for id, s := range snap.shifts {
		cp := s
		st.shifts[id] = &cp
	}
	st.claims = make(map[string]*model.Claim, len(snap.claims))
	for id, c := range snap.claims {
		cp := c
		st.claims[id] = &cp
	}
}

// shift / claim 直接读取（测试断言用）
func (st *memStore) shift(id string) model.Shift {
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.shifts[id]
}

func (st *memStore) claim(id string) model.Claim {
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.claims[id]
}

func (st *memStore) putShift(s *model.Shift) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.ShiftID == "" {
		s.ShiftID = st.nextID("shift")
	}
	if s.Version == 0 {
		s.Version = 1
	}
	cp := *s
	st.shifts[s.ShiftID] = &cp
}

func (st *memStore) putClaim(c *model.Claim) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.ClaimID == "" {
		c.ClaimID = st.nextID("claim")
	}
	if c.Version == 0 {
		c.Version = 1
	}
	cp := *c
	st.claims[c.ClaimID] = &cp
}

// ── Mock Transactor ──

type memTransactor struct {
	st    *memStore
	repos *repository.Repository
}

func (t *memTransactor) WithinTransaction(_ context.Context, fn func(repos *repository.Repository) error) error {
	t.st.txMu.Lock()
	defer t.st.txMu.Unlock()

	snap := t.st.snapshot()
	if err := fn(t.repos); err != nil {
		t.st.restore(snap)
		return err
	}
	return nil
}

// newMockRepository 组装基于 memStore 的 Repository 聚合
func newMockRepository(st *memStore) *repository.Repository {
	repos := &repository.Repository{
		Shift:        &mockShiftRepo{st: st},
		Claim:        &mockClaimRepo{st: st},
		Company:      &mockCompanyRepo{st: st},
		Relationship: &mockRelationshipRepo{st: st},
		User:         &mockUserRepo{st: st},
		Notification: &mockNotificationRepo{st: st},
	}
	repos.Tx = &memTransactor{st: st, repos: repos}
	return repos
}

// ── Mock ShiftRepository ──

type mockShiftRepo struct {
	st *memStore
}

func (m *mockShiftRepo) Create(_ context.Context, shift *model.Shift) error {
	m.st.putShift(shift)
	return nil
}

func (m *mockShiftRepo) GetByID(_ context.Context, id string) (*model.Shift, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if s, ok := m.st.shifts[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error) {
	return m.GetByID(ctx, id)
}

func (m *mockShiftRepo) List(_ context.Context, f repository.ShiftFilter) ([]model.Shift, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	var allowed map[string]bool
	if f.AllowedFacilityIDs != nil {
		allowed = make(map[string]bool)
		for _, id := range f.AllowedFacilityIDs {
			allowed[id] = true
		}
	}

	var result []model.Shift
	for _, s := range m.st.shifts {
		if f.FacilityID != "" && s.FacilityID != f.FacilityID {
			continue
		}
		if allowed != nil && !allowed[s.FacilityID] {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		day := s.Date.Format("2006-01-02")
		if f.DateFrom != nil && day < f.DateFrom.Format("2006-01-02") {
			continue
		}
		if f.DateTo != nil && day > f.DateTo.Format("2006-01-02") {
			continue
		}
		if f.Role != "" && !strings.Contains(strings.ToLower(s.RoleRequired), strings.ToLower(f.Role)) {
			continue
		}
		if f.ExternallyVisibleAt != nil {
			switch s.Visibility {
			case model.VisibilityTier1, model.VisibilityTier2, model.VisibilityAgency, model.VisibilityAll:
			case model.VisibilityInternal, model.VisibilityTiered:
				if s.Tier1Release == nil || s.Tier1Release.After(*f.ExternallyVisibleAt) {
					continue
				}
			default:
				continue
			}
		}
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].StartTime < result[j].StartTime
	})

	total := int64(len(result))
	if f.Limit > 0 {
		if f.Offset >= len(result) {
			return []model.Shift{}, total, nil
		}
		end := f.Offset + f.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[f.Offset:end]
	}
	return result, total, nil
}

func (m *mockShiftRepo) ListOpenByDateRange(_ context.Context, from, to time.Time) ([]model.Shift, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var result []model.Shift
	for _, s := range m.st.shifts {
		day := s.Date.Format("2006-01-02")
		if s.Status == model.ShiftStatusOpen && day >= from.Format("2006-01-02") && day <= to.Format("2006-01-02") {
			result = append(result, *s)
		}
	}
	return result, nil
}

func releaseAtFor(s *model.Shift, from string) *time.Time {
	switch from {
	case model.VisibilityInternal:
		return s.Tier1Release
	case model.VisibilityTier1:
		return s.Tier2Release
	}
	return nil
}

func (m *mockShiftRepo) ListPromotionCandidates(_ context.Context, from string, now time.Time, _ int) ([]string, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var ids []string
	for id, s := range m.st.shifts {
		at := releaseAtFor(s, from)
		if s.Visibility == from && s.Status == model.ShiftStatusOpen && at != nil && !at.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockShiftRepo) PromoteVisibility(_ context.Context, shiftID, from, to string, now time.Time) (bool, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.failPromote[shiftID] {
		return false, errors.New("模拟数据库错误")
	}
	s, ok := m.st.shifts[shiftID]
	if !ok {
		return false, nil
	}
	at := releaseAtFor(s, from)
	if s.Visibility != from || s.Status != model.ShiftStatusOpen || at == nil || at.After(now) {
		return false, nil
	}
	s.Visibility = to
	s.Version++
	return true, nil
}

func (m *mockShiftRepo) MarkReminderSent(_ context.Context, shiftID string, at time.Time) (bool, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	s, ok := m.st.shifts[shiftID]
	if !ok || s.Status != model.ShiftStatusOpen || s.RemindedAt != nil {
		return false, nil
	}
	t := at
	s.RemindedAt = &t
	return true, nil
}

func (m *mockShiftRepo) Update(_ context.Context, shift *model.Shift) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	cur, ok := m.st.shifts[shift.ShiftID]
	if !ok || cur.Version != shift.Version {
		return pkgerrors.ErrOptimisticLock
	}
	shift.Version++
	cp := *shift
	m.st.shifts[shift.ShiftID] = &cp
	return nil
}

// ── Mock ClaimRepository ──

type mockClaimRepo struct {
	st *memStore
}

func (m *mockClaimRepo) Create(_ context.Context, claim *model.Claim) error {
	m.st.mu.Lock()
	for _, c := range m.st.claims {
		if c.ShiftID == claim.ShiftID && c.WorkerID == claim.WorkerID {
			m.st.mu.Unlock()
			return gorm.ErrDuplicatedKey
		}
	}
	m.st.mu.Unlock()
	m.st.putClaim(claim)
	return nil
}

func (m *mockClaimRepo) GetByID(_ context.Context, id string) (*model.Claim, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if c, ok := m.st.claims[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClaimRepo) GetByShiftAndWorker(_ context.Context, shiftID, workerID string) (*model.Claim, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, c := range m.st.claims {
		if c.ShiftID == shiftID && c.WorkerID == workerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClaimRepo) ListByShift(_ context.Context, shiftID string) ([]model.Claim, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var result []model.Claim
	for _, c := range m.st.claims {
		if c.ShiftID == shiftID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClaimID < result[j].ClaimID })
	return result, nil
}

func (m *mockClaimRepo) withShifts(claims []model.Claim) []model.ClaimWithShift {
	result := make([]model.ClaimWithShift, 0, len(claims))
	for _, c := range claims {
		if s, ok := m.st.shifts[c.ShiftID]; ok {
			result = append(result, model.ClaimWithShift{Claim: c, Shift: *s})
		}
	}
	return result
}

func (m *mockClaimRepo) ListActiveByWorker(_ context.Context, workerID string) ([]model.ClaimWithShift, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var claims []model.Claim
	for _, c := range m.st.claims {
		if c.WorkerID == workerID && c.IsActive() {
			claims = append(claims, *c)
		}
	}
	return m.withShifts(claims), nil
}

func (m *mockClaimRepo) ListByWorker(_ context.Context, workerID, status string, offset, limit int) ([]model.ClaimWithShift, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var claims []model.Claim
	for _, c := range m.st.claims {
		if c.WorkerID != workerID || (status != "" && c.Status != status) {
			continue
		}
		claims = append(claims, *c)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ClaimedAt.After(claims[j].ClaimedAt) })
	total := int64(len(claims))
	if limit > 0 && offset < len(claims) {
		end := offset + limit
		if end > len(claims) {
			end = len(claims)
		}
		claims = claims[offset:end]
	}
	return m.withShifts(claims), total, nil
}

func (m *mockClaimRepo) Update(_ context.Context, claim *model.Claim) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.failClaimUpdate[claim.ClaimID] {
		return errors.New("模拟数据库错误")
	}
	cur, ok := m.st.claims[claim.ClaimID]
	if !ok || cur.Version != claim.Version {
		return pkgerrors.ErrOptimisticLock
	}
	// 部分唯一索引：同一班次至多一条 approved
	if claim.Status == model.ClaimStatusApproved {
		for _, c := range m.st.claims {
			if c.ShiftID == claim.ShiftID && c.ClaimID != claim.ClaimID && c.Status == model.ClaimStatusApproved {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	claim.Version++
	cp := *claim
	m.st.claims[claim.ClaimID] = &cp
	return nil
}

// ── Mock CompanyRepository / RelationshipRepository ──

type mockCompanyRepo struct {
	st *memStore
}

func (m *mockCompanyRepo) GetByID(_ context.Context, id string) (*model.Company, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if c, ok := m.st.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockRelationshipRepo struct {
	st *memStore
}

func (m *mockRelationshipRepo) GetActive(_ context.Context, facilityID, agencyID string) (*model.Relationship, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, r := range m.st.relationships {
		if r.FacilityID == facilityID && r.AgencyID == agencyID && r.Status == model.RelationshipActive {
			cp := r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRelationshipRepo) ListActiveFacilityIDs(_ context.Context, agencyID string) ([]string, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	ids := []string{}
	for _, r := range m.st.relationships {
		if r.AgencyID == agencyID && r.Status == model.RelationshipActive {
			ids = append(ids, r.FacilityID)
		}
	}
	return ids, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	st *memStore
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if u, ok := m.st.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u, ok := m.st.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListByCompanyAndRole(_ context.Context, companyID, role string) ([]model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var result []model.User
	for _, u := range m.st.users {
		if u.CompanyID != nil && *u.CompanyID == companyID && u.Role == role && u.IsActive {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	st *memStore
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if n.NotificationID == "" {
		n.NotificationID = m.st.nextID("ntf")
	}
	n.CreatedAt = time.Now()
	cp := *n
	m.st.notifications[n.NotificationID] = &cp
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id string) (*model.Notification, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if n, ok := m.st.notifications[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var result []model.Notification
	for _, n := range m.st.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NotificationID > result[j].NotificationID })
	total := int64(len(result))
	if offset >= len(result) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id string, readAt time.Time) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if n, ok := m.st.notifications[id]; ok {
		n.IsRead = true
		n.ReadAt = &readAt
	}
	return nil
}

// ── 测试辅助 ──

// fixedClock 可手动拨动的时钟
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// recordingNotifier 记录发出的通知
type recordingNotifier struct {
	mu       sync.Mutex
	payloads []NotificationPayload
}

func (n *recordingNotifier) Notify(_ context.Context, payloads ...NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payloads...)
}

func (n *recordingNotifier) byType(typ string) []NotificationPayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	var result []NotificationPayload
	for _, p := range n.payloads {
		if p.Type == typ {
			result = append(result, p)
		}
	}
	return result
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = nil
}

func strPtr(s string) *string { return &s }
