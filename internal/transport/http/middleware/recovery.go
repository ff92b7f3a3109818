package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	resp "soil-monitor/internal/transport/http/response"
)

// Recovery 捕获 panic，记录堆栈，对外只返回 InternalError
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(KeyRequestID)),
					zap.ByteString("stack", debug.Stack()),
				)
				c.AbortWithStatusJSON(resp.Status(resp.KindInternal), resp.Error(resp.KindInternal, ""))
			}
		}()
		c.Next()
	}
}
