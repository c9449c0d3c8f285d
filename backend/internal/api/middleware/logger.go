package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger 请求访问日志
// route 记录路由模板而非原始路径，班次/抢班 ID 单独成字段便于按业务对象检索
// 身份字段由 JWTAuth 注入；company_id 为空的已认证请求标记为平台运营方
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if rid := c.GetString(requestIDKey); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}
		fields = append(fields, actorFields(c)...)
		for _, p := range []string{"id", "claim_id"} {
			if v := c.Param(p); v != "" {
				fields = append(fields, zap.String(paramField(route, p), v))
			}
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case statusCode >= 500:
			logger.Error("请求处理失败", fields...)
		case statusCode == http.StatusConflict || statusCode == http.StatusTooManyRequests:
			// 抢班冲突与限流属于正常业务拒绝
			logger.Info("请求被业务规则拒绝", fields...)
		case statusCode >= 400:
			logger.Warn("客户端错误", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}

func actorFields(c *gin.Context) []zap.Field {
	uid := c.GetString("user_id")
	if uid == "" {
		return nil
	}
	fields := []zap.Field{zap.String("user_id", uid), zap.String("role", c.GetString("role"))}
	if company := c.GetString("company_id"); company != "" {
		fields = append(fields, zap.String("company_id", company))
	} else {
		fields = append(fields, zap.Bool("operator", true))
	}
	return fields
}

// paramField 将路由参数 :id 映射为所属资源的字段名
func paramField(route, p string) string {
	if p != "id" {
		return p
	}
	if strings.HasPrefix(route, "/api/v1/notifications") {
		return "notification_id"
	}
	return "shift_id"
}
