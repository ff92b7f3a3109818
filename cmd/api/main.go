package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"soil-monitor/internal/core/auth"
	"soil-monitor/internal/core/config"
	"soil-monitor/internal/core/database"
	"soil-monitor/internal/core/logger"
	"soil-monitor/internal/core/ratelimit"
	"soil-monitor/internal/core/server"
	"soil-monitor/internal/repo"
	"soil-monitor/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	undo := logger.RedirectStdLog(log)
	defer undo()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	defer func() { _ = database.Close(db) }()
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.AccessTokenTTL(),
	}
	if cfg.JWT.Secret == "change-me" {
		log.Warn("jwt secret is the default value, set APP_JWT_SECRET")
	}

	throttle, rdb := mustThrottle(cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	r := router.NewAPIEngine(router.Deps{
		Logger:   log,
		DB:       db,
		Config:   cfg,
		JWT:      jwter,
		Throttle: throttle,
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r, log,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("soil api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+"/api"),
		zap.Bool("jwt_required", cfg.JWT.Required),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("soil api start FAILED", zap.Error(err))
		}
	}()
	log.Info("soil api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("soil api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

// mustThrottle 未配置 redis.addr 时返回 nil，登录不限流；client 由调用方关闭
func mustThrottle(cfg *config.Config, l *zap.Logger) (*ratelimit.FixedWindow, *redis.Client) {
	if cfg.Redis.Addr == "" {
		l.Info("login throttle disabled (redis.addr empty)")
		return nil, nil
	}
	rdb := ratelimit.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	fw, err := ratelimit.NewFixedWindow(rdb, "soil:ratelimit",
		cfg.Limits.LoginAttempts, time.Duration(cfg.Limits.LoginWindowSec)*time.Second)
	if err != nil {
		_ = rdb.Close()
		l.Fatal("login throttle", zap.Error(err))
	}
	l.Info("login throttle enabled",
		zap.String("redis", cfg.Redis.Addr),
		zap.Int("attempts", cfg.Limits.LoginAttempts),
		zap.Int("window_sec", cfg.Limits.LoginWindowSec),
	)
	return fw, rdb
}
