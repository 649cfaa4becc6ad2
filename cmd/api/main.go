package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tracevault/tracevault-api/api/swagger"
	"github.com/tracevault/tracevault-api/internal/handler"
	"github.com/tracevault/tracevault-api/internal/middleware"
	"github.com/tracevault/tracevault-api/internal/repository"
	"github.com/tracevault/tracevault-api/internal/service"
	"github.com/tracevault/tracevault-api/pkg/cache"
	"github.com/tracevault/tracevault-api/pkg/config"
	"github.com/tracevault/tracevault-api/pkg/database"
	"github.com/tracevault/tracevault-api/pkg/jobs"
	"github.com/tracevault/tracevault-api/pkg/logger"
	corsmiddleware "github.com/tracevault/tracevault-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tracevault/tracevault-api/pkg/middleware/requestid"
	"github.com/tracevault/tracevault-api/pkg/storage"
)

// @title TraceVault API
// @version 0.1.0
// @description Workspace-scoped record keeping on dynamic templates
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

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Suggest.CacheEnabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, suggestion cache disabled", "error", redisErr)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Suggest.CacheTTL, logr, true)
		}
	}

	blobStore, err := storage.NewLocalStorage(filepath.Join(cfg.Documents.StorageDir, "documents"))
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(filepath.Join(cfg.Documents.StorageDir, "exports"))
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Exports.ResultTTL)

	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	valueRepo := repository.NewValueRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	exportRepo := repository.NewExportRepository(db)

	storeTimeout := cfg.Store.Timeout

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "tracevault-api",
	})
	scopeSvc := service.NewScopeService(workspaceRepo, cacheSvc, validate, logr, storeTimeout)
	templateSvc := service.NewTemplateService(templateRepo, cacheSvc, validate, logr, storeTimeout)
	valueSvc := service.NewValueService(valueRepo, recordRepo, cacheSvc, validate, logr, storeTimeout)
	recordSvc := service.NewRecordService(recordRepo, templateRepo, valueRepo, cacheSvc, validate, logr, storeTimeout)
	suggestionSvc := service.NewSuggestionService(valueRepo, templateRepo, cacheSvc, cfg.Suggest.Limit, cfg.Suggest.CacheTTL, logr, storeTimeout)
	linkSvc := service.NewLinkService(ruleRepo, documentRepo, valueRepo, recordRepo, templateRepo, validate, logr, storeTimeout)
	documentSvc := service.NewDocumentService(documentRepo, blobStore, documentSigner, service.DocumentServiceConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	}, logr, storeTimeout)
	exportSvc := service.NewExportService(exportRepo, recordRepo, templateRepo, valueRepo, exportStore, exportSigner, service.ExportServiceConfig{
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr, storeTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		queue := jobs.NewQueue("record_export", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		})
		exportSvc.SetQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()

		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					deleted, cleanupErr := exportStore.CleanupOlderThan(cfg.Exports.ResultTTL)
					if cleanupErr != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", cleanupErr)
					} else if len(deleted) > 0 {
						logr.Sugar().Infow("expired export files removed", "count", len(deleted))
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	workspaceHandler := handler.NewWorkspaceHandler(scopeSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	recordHandler := handler.NewRecordHandler(recordSvc, valueSvc, linkSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc, linkSvc)
	suggestionHandler := handler.NewSuggestionHandler(suggestionSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	// Signed-token downloads authenticate through the token itself.
	api.GET("/documents/download/:token", documentHandler.Download)
	api.GET("/exports/download/:token", exportHandler.Download)

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.GET("/workspaces", workspaceHandler.List)
		authed.POST("/workspaces", workspaceHandler.Create)
		authed.GET("/workspaces/active", workspaceHandler.Active)
		authed.POST("/workspaces/:id/switch", workspaceHandler.Switch)
	}

	scoped := api.Group("", middleware.JWT(authSvc), middleware.WorkspaceScope(scopeSvc))
	{
		scoped.GET("/workspace/members", workspaceHandler.ListMembers)

		scoped.GET("/templates", templateHandler.List)
		scoped.POST("/templates", templateHandler.Create)
		scoped.GET("/templates/:id", templateHandler.Get)
		scoped.PUT("/templates/:id", templateHandler.Rename)
		scoped.PUT("/templates/:id/properties", templateHandler.SaveProperties)
		scoped.GET("/templates/:id/records", recordHandler.ListByTemplate)
		scoped.GET("/templates/:id/properties/:propertyId/suggestions", suggestionHandler.Suggest)

		scoped.POST("/records/assets", recordHandler.CreateAsset)
		scoped.POST("/records/logs", recordHandler.CreateLogEntry)
		scoped.PUT("/records/logs/:id", recordHandler.EditLogEntry)
		scoped.GET("/records/:id", recordHandler.Get)
		scoped.GET("/records/:id/rendered", recordHandler.Render)
		scoped.GET("/records/:id/logs", recordHandler.ListLogEntries)
		scoped.GET("/records/:id/values", recordHandler.GetValues)
		scoped.PUT("/records/:id/values", recordHandler.SetValues)
		scoped.GET("/records/:id/documents", recordHandler.LinkedDocuments)
		scoped.DELETE("/records/:id", recordHandler.Delete)

		scoped.POST("/documents", documentHandler.Upload)
		scoped.GET("/documents", documentHandler.List)
		scoped.GET("/documents/:id", documentHandler.Get)
		scoped.POST("/documents/:id/signed-url", documentHandler.SignedURL)
		scoped.GET("/documents/:id/rules", documentHandler.ListRules)
		scoped.POST("/documents/rules", documentHandler.CreateRule)
		scoped.DELETE("/documents/rules/:ruleId", documentHandler.DeleteRule)

		scoped.POST("/exports", exportHandler.Request)
		scoped.GET("/exports/:id", exportHandler.Status)
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.WorkspaceScope(scopeSvc), middleware.RequireAdmin())
	{
		admin.DELETE("/workspace", workspaceHandler.Delete)
		admin.PUT("/workspace/members", workspaceHandler.SetMember)
		admin.DELETE("/workspace/members/:userId", workspaceHandler.RemoveMember)
		admin.DELETE("/templates/:id", templateHandler.Delete)
		admin.DELETE("/documents/:id", documentHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
