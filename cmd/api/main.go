package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/siwes-logbook-api/api/swagger"
	"github.com/noah-isme/siwes-logbook-api/internal/handler"
	"github.com/noah-isme/siwes-logbook-api/internal/middleware"
	"github.com/noah-isme/siwes-logbook-api/internal/models"
	"github.com/noah-isme/siwes-logbook-api/internal/repository"
	"github.com/noah-isme/siwes-logbook-api/internal/service"
	"github.com/noah-isme/siwes-logbook-api/pkg/cache"
	"github.com/noah-isme/siwes-logbook-api/pkg/config"
	"github.com/noah-isme/siwes-logbook-api/pkg/database"
	"github.com/noah-isme/siwes-logbook-api/pkg/jobs"
	"github.com/noah-isme/siwes-logbook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/siwes-logbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/siwes-logbook-api/pkg/middleware/requestid"
)

// @title SIWES Logbook API
// @version 1.0.0
// @description Weekly logbook, attendance and supervisor assignment service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and notifications degraded", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	supervisorRepo := repository.NewSupervisorRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	weekRepo := repository.NewWeekRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	// Notification sink. Events flow through an in-process queue onto a
	// Redis pub/sub channel; consumers are out of scope for this service.
	var sink service.NotificationSink = service.NopSink{}
	var redisSink *service.RedisSink
	if cfg.Notifications.Enabled && redisClient != nil {
		redisSink = service.NewRedisSink(cacheRepo, cfg.Notifications.Channel, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		}, logr)
		sink = redisSink
	}

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "siwes-logbook-api",
		SingleSession:      false,
	})
	studentService := service.NewStudentService(studentRepo, nil, logr)
	supervisorService := service.NewSupervisorService(supervisorRepo, assignmentRepo, sessionRepo, nil, logr)
	sessionService := service.NewSessionService(sessionRepo, nil, logr)
	weekService := service.NewWeekService(weekRepo, studentRepo, supervisorRepo, sink, nil, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, supervisorRepo, cacheRepo, cfg.Attendance.SummaryCacheTTL, nil, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, supervisorRepo, studentRepo, sessionRepo, sink, nil, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	supervisorHandler := handler.NewSupervisorHandler(supervisorService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	weekHandler := handler.NewWeekHandler(weekService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authService))

	students := protected.Group("/students")
	{
		students.GET("/me", middleware.RequireRoles(models.RoleStudent), studentHandler.Me)
		students.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), studentHandler.List)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Register)
		students.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), studentHandler.Get)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
		students.PATCH("/:id/flags", middleware.RequireRoles(models.RoleAdmin), studentHandler.SetFlags)
		students.GET("/:id/weeks", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), weekHandler.ListByStudent)
		students.GET("/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), attendanceHandler.HistoryByStudent)
		students.POST("/:id/assign",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "SUPERVISOR_ASSIGN", "assignment"),
			assignmentHandler.AutoAssign)
	}

	supervisors := protected.Group("/supervisors")
	{
		supervisors.GET("", middleware.RequireRoles(models.RoleAdmin), supervisorHandler.List)
		supervisors.POST("", middleware.RequireRoles(models.RoleAdmin), supervisorHandler.Create)
		supervisors.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), supervisorHandler.Get)
		supervisors.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), supervisorHandler.Update)
		supervisors.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), supervisorHandler.Deactivate)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.GET("", sessionHandler.List)
		sessions.GET("/current", sessionHandler.Current)
		sessions.POST("", middleware.RequireRoles(models.RoleAdmin), sessionHandler.Create)
		sessions.PUT("/:id/current", middleware.RequireRoles(models.RoleAdmin), sessionHandler.SetCurrent)
	}

	weeks := protected.Group("/weeks")
	{
		weeks.POST("", middleware.RequireRoles(models.RoleStudent), weekHandler.Submit)
		weeks.GET("", middleware.RequireRoles(models.RoleStudent), weekHandler.ListOwn)
		weeks.GET("/pending", middleware.RequireRoles(models.RoleSupervisor), weekHandler.Pending)
		weeks.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor), weekHandler.Get)
		weeks.POST("/:id/review",
			middleware.RequireRoles(models.RoleSupervisor),
			middleware.Audit(userRepo, "WEEK_REVIEW", "week"),
			weekHandler.Review)
		weeks.PUT("/:id",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "WEEK_OVERRIDE", "week"),
			weekHandler.AdminUpdate)
		weeks.PATCH("/:id/status",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "WEEK_OVERRIDE", "week"),
			weekHandler.AdminSetStatus)
		weeks.DELETE("/:id",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "WEEK_OVERRIDE", "week"),
			weekHandler.AdminDelete)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.POST("/check-in", middleware.RequireRoles(models.RoleStudent), attendanceHandler.CheckIn)
		attendance.POST("/check-out", middleware.RequireRoles(models.RoleStudent), attendanceHandler.CheckOut)
		attendance.GET("/today", middleware.RequireRoles(models.RoleStudent), attendanceHandler.Today)
		attendance.GET("/history", middleware.RequireRoles(models.RoleStudent), attendanceHandler.HistoryOwn)
		attendance.GET("/summary", middleware.RequireRoles(models.RoleSupervisor), attendanceHandler.Summary)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.POST("",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "SUPERVISOR_ASSIGN", "assignment"),
			assignmentHandler.Reassign)
		assignments.PUT("/bulk",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, "SUPERVISOR_ASSIGN", "assignment"),
			assignmentHandler.BulkReplace)
		assignments.GET("/loads", middleware.RequireRoles(models.RoleAdmin), assignmentHandler.Loads)
		assignments.GET("/students", middleware.RequireRoles(models.RoleSupervisor), assignmentHandler.MyStudents)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if redisSink != nil {
		redisSink.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if redisSink != nil {
		redisSink.Stop()
	}
}
