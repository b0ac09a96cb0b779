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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "github.com/noah-isme/f2freport-api/api/swagger"
	"github.com/noah-isme/f2freport-api/internal/handler"
	"github.com/noah-isme/f2freport-api/internal/middleware"
	"github.com/noah-isme/f2freport-api/internal/report"
	"github.com/noah-isme/f2freport-api/internal/repository"
	"github.com/noah-isme/f2freport-api/internal/service"
	"github.com/noah-isme/f2freport-api/pkg/cache"
	"github.com/noah-isme/f2freport-api/pkg/config"
	"github.com/noah-isme/f2freport-api/pkg/database"
	"github.com/noah-isme/f2freport-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/f2freport-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/f2freport-api/pkg/middleware/requestid"
)

// @title Face-to-face Session Report API
// @version 1.0.0
// @description Filtered, paged and exportable reporting over face-to-face training sessions
// @BasePath /
// @schemes http
// @securityDefinitions.apikey Bearer
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

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, field cache invalidations stay local", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	location, err := cfg.Report.Location()
	if err != nil {
		logr.Fatal("invalid report timezone", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	prefix := cfg.Report.TablePrefix
	sessionRepo := repository.NewSessionReportRepository(db)
	fieldRepo := repository.NewMetadataFieldRepository(db, prefix)
	courseRepo := repository.NewCourseRepository(db, prefix)
	participantRepo := repository.NewParticipantRepository(db, prefix)
	schemaRepo := repository.NewSchemaRepository(db, prefix)

	var broadcaster *repository.FieldCacheBroadcaster
	if cfg.FieldCache.BroadcastEnabled && redisClient != nil {
		broadcaster = repository.NewFieldCacheBroadcaster(redisClient, cfg.FieldCache.Channel, logr)
	}

	fieldService := service.NewFieldService(fieldRepo, schemaRepo, broadcaster, metrics, logr, service.FieldServiceConfig{
		TTL: cfg.FieldCache.TTL,
		Aliases: map[string][]string{
			report.FieldCity:  report.ParseAliases(cfg.Report.CityAliases, report.DefaultAliases[report.FieldCity]),
			report.FieldVenue: report.ParseAliases(cfg.Report.VenueAliases, report.DefaultAliases[report.FieldVenue]),
			report.FieldRoom:  report.ParseAliases(cfg.Report.RoomAliases, report.DefaultAliases[report.FieldRoom]),
		},
	})
	reportService := service.NewReportService(service.ReportServiceParams{
		Sessions: sessionRepo,
		Courses:  courseRepo,
		Fields:   fieldService,
		Metrics:  metrics,
		Logger:   logr,
		Config: service.ReportServiceConfig{
			PageSize:    cfg.Report.PageSize,
			MaxPageSize: cfg.Report.MaxPageSize,
			Location:    location,
			Compiler: report.CompilerConfig{
				TablePrefix:         prefix,
				NotSpecified:        cfg.Report.NotSpecified,
				FailOnMissingFields: cfg.Report.FailOnMissingFields,
				TrainerRoleID:       cfg.Report.TrainerRoleID,
			},
		},
	})
	exportService := service.NewExportService(reportService, service.ExportConfig{Columns: cfg.Report.Columns}, logr, nil, nil)
	participantService := service.NewParticipantService(participantRepo, fieldService, logr)
	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	reportHandler := handler.NewReportHandler(reportService, exportService, fieldService)
	participantHandler := handler.NewParticipantHandler(participantService)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	}

	api := r.Group(cfg.APIPrefix)
	reports := api.Group("/reports",
		middleware.RateLimit(limiter),
		middleware.JWT(authService),
		middleware.RequireCapability(cfg.Report.ViewCapability),
		middleware.RequestTimeout(cfg.Database.QueryTimeout),
	)
	reports.GET("/sessions", reportHandler.Sessions)
	reports.GET("/sessions/export", reportHandler.Export)
	reports.GET("/sessions/:id/participants", participantHandler.Participants)
	reports.GET("/courses", reportHandler.Courses)
	reports.GET("/fields", reportHandler.Fields)
	reports.POST("/fields/refresh", middleware.RequireCapability(cfg.Report.ManageCapability), reportHandler.RefreshFields)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := fieldService.ListenInvalidations(ctx); err != nil {
			logr.Warn("field cache invalidation listener stopped", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "db_driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logr.Info("server stopped")
}
