package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"soil-monitor/internal/core/auth"
	resp "soil-monitor/internal/transport/http/response"
)

const KeyClaims = "claims"

// AuthJWT 解析 Bearer token 并放入上下文。
// required=false 时未携带 token 直接放行，携带了无效 token 仍拒绝。
func AuthJWT(j *auth.JWTer, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if ah == "" && !required {
			c.Next()
			return
		}
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(resp.Status(resp.KindUnauthorized), resp.Error(resp.KindUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(resp.Status(resp.KindUnauthorized), resp.Error(resp.KindUnauthorized, "invalid token"))
			return
		}
		c.Set(KeyClaims, claims)
		c.Next()
	}
}

// Claims 取出 AuthJWT 写入的 claims；未认证返回 nil
func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
