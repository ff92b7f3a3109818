package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"soil-monitor/internal/core/auth"
	"soil-monitor/internal/core/config"
	"soil-monitor/internal/core/ratelimit"
	"soil-monitor/internal/core/server"
	"soil-monitor/internal/feature/soil"
	"soil-monitor/internal/feature/user"
	"soil-monitor/internal/repo"
	"soil-monitor/internal/transport/http/handler"
	mdw "soil-monitor/internal/transport/http/middleware"
	"soil-monitor/pkg/utils"
)

type Deps struct {
	Logger   *zap.Logger
	DB       *gorm.DB
	Config   *config.Config
	JWT      *auth.JWTer
	Throttle *ratelimit.FixedWindow // 可为 nil（未配置 Redis）
}

func NewAPIEngine(d Deps) *gin.Engine {
	lim := d.Config.Limits
	r := server.NewRouter(d.Logger, d.Config.App.HTTP.TrustedProxies)

	r.Use(mdw.RequestID(), mdw.Recovery(d.Logger), mdw.Metrics())
	// 未配置（<=0）的限制项不启用
	if lim.RPS > 0 {
		r.Use(mdw.RateLimit(rate.Limit(lim.RPS), max(lim.Burst, 1)))
	}
	if lim.PerIPRPS > 0 {
		r.Use(mdw.RateLimitPerIP(rate.Limit(lim.PerIPRPS), max(lim.PerIPBurst, 1)))
	}
	if lim.MaxInFlight > 0 {
		r.Use(mdw.ConcurrencyLimit(lim.MaxInFlight))
	}
	if lim.MaxBodyBytes > 0 {
		r.Use(mdw.MaxBodyBytes(lim.MaxBodyBytes))
	}
	if lim.TimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(lim.TimeoutSec) * time.Second))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 依赖组装
	userSvc := user.NewService(repo.NewUserRepo(d.DB), utils.BcryptHasher{Cost: d.Config.Auth.BcryptCost})
	soilSvc := soil.NewService(repo.NewReadingRepo(d.DB), repo.NewAnomalyRepo(d.DB))

	MountAll(&r.RouterGroup,
		handler.NewUserHandler(userSvc, d.JWT, mdw.LoginThrottle(d.Throttle)),
		handler.NewSoilHandler(soilSvc, mdw.AuthJWT(d.JWT, d.Config.JWT.Required)),
	)
	return r
}
