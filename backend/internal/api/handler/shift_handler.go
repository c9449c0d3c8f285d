package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/TrustEden/Staffing/backend/internal/dto"
	"github.com/TrustEden/Staffing/backend/internal/service"
	"github.com/TrustEden/Staffing/backend/pkg/response"
)

// ShiftHandler 班次模块 HTTP 处理器
type ShiftHandler struct {
	shiftSvc service.ShiftService
}

// NewShiftHandler 创建 ShiftHandler
func NewShiftHandler(shiftSvc service.ShiftService) *ShiftHandler {
	return &ShiftHandler{shiftSvc: shiftSvc}
}

// PostShift 发布班次
// POST /api/v1/shifts
func (h *ShiftHandler) PostShift(c *gin.Context) {
	var req dto.CreateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeShiftBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	shift, err := h.shiftSvc.PostShift(c.Request.Context(), &req, actor)
	if err != nil {
		handleShiftError(c, err)
		return
	}

	response.Created(c, shift)
}

// ListShifts 班次列表
// GET /api/v1/shifts
func (h *ShiftHandler) ListShifts(c *gin.Context) {
	var req dto.ShiftListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeShiftBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.shiftSvc.ListShifts(c.Request.Context(), &req, actor)
	if err != nil {
		handleShiftError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetShift 班次详情
// GET /api/v1/shifts/:id
func (h *ShiftHandler) GetShift(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	shift, err := h.shiftSvc.GetShift(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleShiftError(c, err)
		return
	}

	response.OK(c, shift)
}

// UpdateShift 修改班次附加信息
// PATCH /api/v1/shifts/:id
func (h *ShiftHandler) UpdateShift(c *gin.Context) {
	var req dto.UpdateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeShiftBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	shift, err := h.shiftSvc.UpdateShift(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleShiftError(c, err)
		return
	}

	response.OK(c, shift)
}

// CancelShift 取消班次
// POST /api/v1/shifts/:id/cancel
func (h *ShiftHandler) CancelShift(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	shift, err := h.shiftSvc.CancelShift(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleShiftError(c, err)
		return
	}

	response.OK(c, shift)
}

// [自证通过] internal/api/handler/shift_handler.go
