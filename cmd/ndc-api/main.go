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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ndc-portal-api/api/swagger"
	"github.com/noah-isme/ndc-portal-api/internal/handler"
	"github.com/noah-isme/ndc-portal-api/internal/middleware"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	"github.com/noah-isme/ndc-portal-api/internal/service"
	"github.com/noah-isme/ndc-portal-api/pkg/config"
	"github.com/noah-isme/ndc-portal-api/pkg/database"
	"github.com/noah-isme/ndc-portal-api/pkg/export"
	"github.com/noah-isme/ndc-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ndc-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ndc-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/ndc-portal-api/pkg/storage"
)

// @title NDC Portal API
// @version 1.0.0
// @description No-dues certificate requests with multi-admin approval tracking
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database); err != nil {
			logr.Fatal("database migration failed", zap.Error(err))
		}
		logr.Info("database migrations applied", zap.String("path", cfg.Database.MigrationsPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := database.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, sign-out deny-list disabled", zap.Error(err))
	} else {
		redisClient = client
	}
	sessions := repository.NewSessionRepository(redisClient, logr)
	defer sessions.Close() //nolint:errcheck

	readiness := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if redisClient != nil {
		readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	photos, localPhotos, err := newPhotoStore(cfg, logr)
	if err != nil {
		logr.Fatal("failed to init photo storage", zap.Error(err))
	}
	if pinger, ok := photos.(interface{ Ping(context.Context) error }); ok {
		readiness = append(readiness, handler.ReadinessCheck{Name: "minio", Check: pinger.Ping})
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	requestRepo := repository.NewNDCRequestRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)

	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, sessions, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, requestRepo, userRepo, userRepo, metricsSvc, validate, logr, service.ApprovalConfig{
		Eligibility:  cfg.Approvals.Eligibility,
		ReopenPolicy: cfg.Approvals.ReopenPolicy,
	})
	requestSvc := service.NewNDCRequestService(requestRepo, courseRepo, approvalSvc, photos, userRepo, metricsSvc, validate, logr, service.PhotoPolicy{
		MaxBytes:     cfg.Storage.MaxPhotoBytes,
		AllowedTypes: cfg.Storage.AllowedMIMETypes,
	})
	exportSvc := service.NewExportService(requestRepo, approvalSvc, requestSvc, photos, userRepo, metricsSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		User:     handler.NewUserHandler(userSvc),
		Course:   handler.NewCourseHandler(courseSvc),
		Request:  handler.NewNDCRequestHandler(requestSvc),
		Approval: handler.NewApprovalHandler(approvalSvc),
		Export:   handler.NewExportHandler(exportSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc, readiness...),
	}
	if localPhotos != nil {
		handlers.File = handler.NewFileHandler(localPhotos, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
	}
	r.MaxMultipartMemory = cfg.Storage.MaxPhotoBytes + 1<<20

	handler.RegisterRoutes(r, handlers, handler.RouteConfig{
		APIPrefix:     cfg.APIPrefix,
		Tokens:        authSvc,
		Audit:         userRepo,
		Logger:        logr,
		EnableMetrics: cfg.Metrics.Enabled,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("eligibility", cfg.Approvals.Eligibility),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newPhotoStore picks the configured driver. The local store is also returned on its own so the
// signed download route can be mounted; it is nil for MinIO.
func newPhotoStore(cfg *config.Config, logr *zap.Logger) (storage.PhotoStore, *storage.LocalStorage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMinIO:
		store, err := storage.NewMinIOStorage(cfg.Storage.MinIO, cfg.Storage.SignedURLTTL, logr)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		store, err := storage.NewLocalStorage(cfg.Storage.LocalDir, signer, cfg.APIPrefix+"/files/photos")
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}
