package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamewrld/server/api/rest"
	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	dbadapter "github.com/gamewrld/server/db"
	mw "github.com/gamewrld/server/middleware"
	"github.com/gamewrld/server/model"
	"github.com/gamewrld/server/scheduler"
	"github.com/gamewrld/server/social/chat"
	"github.com/gamewrld/server/social/friend"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" || cfg.Security.JWTSecret == "change-me" {
		logger.Warn("security.jwt_secret is unset or the sample value; set GAMEWRLD_SECURITY_JWT_SECRET")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)

	// ---- Housekeeping ----
	sched := scheduler.New(logger)
	if cfg.Audit.Retention > 0 && cfg.Audit.PruneInterval > 0 {
		sched.Every("audit_prune", cfg.Audit.PruneInterval, func(ctx context.Context) error {
			_, err := auditSvc.Prune(ctx, time.Now().Add(-cfg.Audit.Retention))
			return err
		})
	}

	// ---- Session cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	if cfg.Cache.RedisAddr != "" {
		logger.Info("Cache initialized", zap.String("backend", "redis"), zap.String("addr", cfg.Cache.RedisAddr))
	} else {
		logger.Info("Cache initialized", zap.String("backend", "local"))
	}

	// ---- Engines ----
	friendSvc := friend.NewService(db, logger)
	chatSvc := chat.NewService(chat.NewGormStore(db), cfg.Social.ConversationLimit, logger)

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := mw.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.CORS(cfg.Security.AllowedOrigins))
	r.Use(limiter.Handler())

	rest.Mount(r, rest.Handlers{
		Users:          rest.NewUserHandler(db, c, cfg.Security, auditSvc, logger),
		FriendRequests: rest.NewFriendRequestHandler(friendSvc, cfg.Social, auditSvc, logger),
		Chat:           rest.NewChatHandler(chatSvc, auditSvc, logger),
	}, cfg.Security, c)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	limiter.Stop()
	sched.Stop()
	auditSvc.Stop(ctx)
	if err := c.Close(); err != nil {
		logger.Warn("cache close", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
