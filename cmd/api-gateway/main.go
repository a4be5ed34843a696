package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/provadm-api/api/swagger"
	"github.com/noah-isme/provadm-api/internal/handler"
	"github.com/noah-isme/provadm-api/internal/middleware"
	"github.com/noah-isme/provadm-api/internal/models"
	"github.com/noah-isme/provadm-api/internal/repository"
	"github.com/noah-isme/provadm-api/internal/service"
	"github.com/noah-isme/provadm-api/internal/workflow"
	"github.com/noah-isme/provadm-api/pkg/cache"
	"github.com/noah-isme/provadm-api/pkg/config"
	"github.com/noah-isme/provadm-api/pkg/database"
	"github.com/noah-isme/provadm-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/provadm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/provadm-api/pkg/middleware/requestid"
)

// @title Provincial Exam Administration API
// @version 1.0.0
// @description Scoped approval workflow for provincial exam administration
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, org-directory cache disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Hierarchy.CacheTTL, logr, cfg.Hierarchy.CacheEnabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Hierarchy.CacheTTL, logr, false)
	}

	orgUnitRepo := repository.NewOrgUnitRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	statusLogRepo := repository.NewStatusLogRepository(db)
	statRepo := repository.NewStatisticRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	appealRepo := repository.NewAppealRepository(db)

	registry := workflow.DefaultRegistry(cfg.Workflow.MinRejectReason)

	hierarchySvc := service.NewHierarchyService(orgUnitRepo, cacheSvc, cfg.Hierarchy.CacheTTL, logr)
	authzSvc := service.NewAuthzService(hierarchySvc, registry, logr)
	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	}, logr)

	appliers := map[models.RequestType]service.Applier{
		models.RequestTypeStatCorrection:  service.NewStatCorrectionApplier(statRepo, logr),
		models.RequestTypeStudentTransfer: service.NewStudentTransferApplier(studentRepo, logr),
		models.RequestTypeAppeal:          service.NewAppealApplier(appealRepo, logr),
	}

	requestSvc := service.NewRequestService(requestRepo, statusLogRepo, authzSvc, hierarchySvc, registry, logr,
		service.WithAppliers(appliers),
		service.WithRequestMetrics(metricsSvc),
	)
	statisticSvc := service.NewStatisticService(statRepo, hierarchySvc, logr)

	requestHandler := handler.NewRequestHandler(requestSvc)
	statisticHandler := handler.NewStatisticHandler(statisticSvc)
	orgUnitHandler := handler.NewOrgUnitHandler(hierarchySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.POST("/requests", requestHandler.Create)
		api.GET("/requests", requestHandler.List)
		api.GET("/requests/:id", requestHandler.Get)
		api.POST("/requests/:id/actions", middleware.RequireReviewer(), requestHandler.Act)
		api.GET("/requests/:id/history", requestHandler.History)

		api.GET("/statistics", statisticHandler.Get)

		api.GET("/org-units/:code/children", orgUnitHandler.Children)
		api.GET("/org-units/:code/path", orgUnitHandler.Path)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
