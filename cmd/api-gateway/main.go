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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-intervention-api/api/swagger"
	"github.com/noah-isme/sma-intervention-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-intervention-api/internal/middleware"
	"github.com/noah-isme/sma-intervention-api/internal/repository"
	"github.com/noah-isme/sma-intervention-api/internal/service"
	"github.com/noah-isme/sma-intervention-api/pkg/cache"
	"github.com/noah-isme/sma-intervention-api/pkg/config"
	"github.com/noah-isme/sma-intervention-api/pkg/database"
	"github.com/noah-isme/sma-intervention-api/pkg/jobs"
	"github.com/noah-isme/sma-intervention-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-intervention-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-intervention-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-intervention-api/pkg/storage"
)

// @title SMA Intervention API
// @version 1.0.0
// @description Intervention case tracking: cases, comment logs and urgency scoring.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Redis.Enabled && cfg.Cases.CacheEnabled
	if cacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, case cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			repo := repository.NewCacheRepository(client)
			defer repo.Close()
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cases.CacheTTL, logr, cacheEnabled)
	if cfg.Database.AutoMigrate {
		// projections cached before a schema change may no longer match it
		_ = cacheSvc.Invalidate(ctx, "cases:*")
	}

	validate := service.NewValidator()
	scoring := service.NewScoringEngine(nil)

	caseRepo := repository.NewInterventionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	identityRepo := repository.NewIdentityRepository(db)

	caseSvc := service.NewInterventionService(caseRepo, identityRepo, commentRepo, scoring, cacheSvc, metricsSvc, validate, logr,
		service.InterventionServiceConfig{CacheTTL: cfg.Cases.CacheTTL})
	commentSvc := service.NewCommentService(commentRepo, caseRepo, identityRepo, cacheSvc, metricsSvc, validate, logr,
		service.CommentServiceConfig{DefaultPageSize: cfg.Cases.DefaultCommentPageSize, MaxPageSize: cfg.Cases.CommentPageSizeMax})
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})

	routes := handler.CaseRoutes{
		Cases:    handler.NewInterventionHandler(caseSvc),
		Comments: handler.NewCommentHandler(commentSvc),
	}

	if cfg.Reports.Enabled {
		reportHandler, queue, err := buildReports(ctx, cfg, db, caseRepo, identityRepo, scoring, validate, logr)
		if err != nil {
			logr.Fatal("failed to init urgency reports", zap.Error(err))
		}
		defer queue.Stop()
		routes.Reports = reportHandler
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc))
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
		r.GET(cfg.Metrics.Path+"/summary", metricsHandler.Summary)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r.Group(cfg.APIPrefix), internalmiddleware.JWT(authSvc))

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// buildReports wires the urgency report pipeline: job repository, export
// storage, worker queue, recovery of queued jobs and the cleanup loop.
func buildReports(
	ctx context.Context,
	cfg *config.Config,
	db *sqlx.DB,
	cases *repository.InterventionRepository,
	identities *repository.IdentityRepository,
	scoring *service.ScoringEngine,
	validate *validator.Validate,
	logr *zap.Logger,
) (*handler.ReportHandler, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(cases, identities, scoring, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	jobRepo := repository.NewCaseReportRepository(db)
	worker := service.NewReportWorker(jobRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("case-reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(jobRepo, queue, exportSvc, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	return handler.NewReportHandler(reportSvc), queue, nil
}
