package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"viralsafe-backend/docs"
	"viralsafe-backend/internal/app"
	"viralsafe-backend/internal/common/config"
	"viralsafe-backend/internal/common/logger"
	"viralsafe-backend/internal/common/middleware"
	authhttp "viralsafe-backend/internal/features/auth/delivery/http"
	healthhttp "viralsafe-backend/internal/features/health/delivery/http"
	posthttp "viralsafe-backend/internal/features/post/delivery/http"
	userhttp "viralsafe-backend/internal/features/user/delivery/http"
)

// @title           ViralSafe API
// @version         1.0
// @description     Social content platform with wallet sign-in, token-weighted voting and NFT mints for viral posts.

// @host      localhost:8000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Access token as "Bearer <token>"

// @tag.name auth
// @tag.description Wallet signature authentication

// @tag.name users
// @tag.description Profiles and moderation

// @tag.name posts
// @tag.description Posts and feeds

// @tag.name votes
// @tag.description Token-weighted voting

// @tag.name nft
// @tag.description NFT mint requests and results

// @tag.name health
// @tag.description Liveness and readiness

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Инициализируем логгер
	logger.Init(logger.Options{
		Service:    "viralsafe-api",
		Debug:      cfg.Debug,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	logger.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Bool("debug", cfg.Debug).
		Msg("Starting ViralSafe backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	application.StartWorkers(ctx)

	// Настраиваем Gin
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	// Настраиваем CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	setupRoutes(router, application)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	application.Close(shutdownCtx)

	logger.Info().Msg("Server exited")
}

func setupRoutes(router *gin.Engine, application *app.App) {
	cfg := application.Config

	healthhttp.NewHandler(cfg.App.Version, cfg.App.Environment,
		application.DatabaseBackend(), application.CacheBackend()).
		WithReadiness(application.StoreReady).
		RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Server.SwaggerEnabled {
		docs.SwaggerInfo.Version = cfg.App.Version
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Группа API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)))

	if !application.StoreReady() {
		v1.Use(middleware.RequireBackends(application.StoreReady, "database"))
		v1.Any("/*path", func(c *gin.Context) {})
		return
	}

	authhttp.NewHandler(application.Auth).RegisterRoutes(v1)
	userhttp.NewUserHandler(application.Users, application.Auth).RegisterRoutes(v1)
	posthttp.NewPostHandler(application.Posts, application.Auth).RegisterRoutes(v1)
}
