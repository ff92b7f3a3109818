package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"soil-monitor/internal/core/logger"
)

// NewRouter 基础 engine：zap 访问日志 + CORS。
// 只有 trustedProxies 内的来源才会被采信 X-Forwarded-For / X-Real-IP。
func NewRouter(l *zap.Logger, trustedProxies []string) *gin.Engine {
	r := gin.New()
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		l.Warn("bad trusted proxies, forwarded headers ignored", zap.Strings("proxies", trustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(ginzap.GinzapWithConfig(l, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
		Context: func(c *gin.Context) []zapcore.Field {
			if rid := c.GetString("X-Request-ID"); rid != "" {
				return []zapcore.Field{zap.String("request_id", rid)}
			}
			return nil
		},
	}))
	r.Use(cors.Default())
	return r
}

func BuildServer(addr string, handler http.Handler, l *zap.Logger, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    rt,
		WriteTimeout:   wt,
		IdleTimeout:    it,
		MaxHeaderBytes: 1 << 20, // 1MB
		ErrorLog:       logger.ToStdLogger(l, zapcore.WarnLevel),
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
