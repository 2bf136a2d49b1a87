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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coaching-center-api/api/swagger"
	"github.com/noah-isme/coaching-center-api/internal/handler"
	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	"github.com/noah-isme/coaching-center-api/internal/repository"
	"github.com/noah-isme/coaching-center-api/internal/service"
	"github.com/noah-isme/coaching-center-api/pkg/cache"
	"github.com/noah-isme/coaching-center-api/pkg/config"
	"github.com/noah-isme/coaching-center-api/pkg/database"
	"github.com/noah-isme/coaching-center-api/pkg/export"
	"github.com/noah-isme/coaching-center-api/pkg/logger"
	"github.com/noah-isme/coaching-center-api/pkg/storage"
)

// @title Coaching Center API
// @version 1.0.0
// @description Teacher payroll and student fee reconciliation for a coaching center
// @BasePath /api
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"database": database.HealthCheck{DB: db}}

	var (
		cacheRepo   service.CacheRepository
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			cacheRepo = repo
			readiness["cache"] = repo
			defer repo.Close()
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	fees := service.FeeSettings{
		Schedule:            reconcile.NewFeeSchedule(cfg.Fees.Schedule),
		DefaultInstallments: cfg.Fees.DefaultInstallments,
		YearStartMonth:      cfg.Fees.AcademicYearStartMonth,
	}
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	settlementRepo := repository.NewTeacherPaymentRepository(db)
	installmentRepo := repository.NewStudentPaymentRepository(db)
	testRepo := repository.NewTestRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	studentSvc := service.NewStudentService(studentRepo, userRepo, installmentRepo, fees, validate, logr)
	authSvc := service.NewAuthService(userRepo, studentSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, lectureRepo, settlementRepo, cacheSvc, metricsSvc, validate, logr)
	lectureSvc := service.NewLectureService(lectureRepo, teacherRepo, cacheSvc, validate, logr)
	paymentSvc := service.NewPaymentService(service.PaymentServiceDeps{
		Teachers:     teacherRepo,
		Lectures:     lectureRepo,
		Settlements:  settlementRepo,
		Students:     studentRepo,
		Installments: installmentRepo,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
		Fees:         fees,
		Validator:    validate,
		Logger:       logr,
	})
	testSvc := service.NewTestService(testRepo, teacherRepo, studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, lectureSvc, studentRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Teachers:     teacherRepo,
		TeacherFind:  teacherRepo,
		Enrollment:   studentRepo,
		Lectures:     lectureRepo,
		Settlements:  settlementRepo,
		Installments: installmentRepo,
		Tests:        testRepo,
		Students:     studentSvc,
		Attendance:   attendanceRepo,
		Fees:         fees,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
		Logger:       logr,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	reportSvc := service.NewReportService(teacherSvc, paymentSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	store, staticDir, err := newObjectStore(ctx, cfg.Uploads)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}
	uploadSvc := service.NewUploadService(store, service.UploadConfig{
		KeyPrefix:    cfg.Uploads.KeyPrefix,
		MaxFileBytes: cfg.Uploads.MaxFileBytes,
		MaxDimension: cfg.Uploads.MaxDimension,
		MaxPixels:    cfg.Uploads.MaxPixels,
	}, logr)

	seeded, err := authSvc.SeedAdmin(ctx, service.AdminSeed{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		FullName: cfg.Admin.FullName,
	})
	if err != nil {
		logr.Fatal("failed to seed admin", zap.Error(err))
	}
	if seeded {
		logr.Info("bootstrap admin created", zap.String("email", cfg.Admin.Email))
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StaticDir:      staticDir,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Metrics:        metricsSvc,
		Handlers: handler.Handlers{
			Auth:       handler.NewAuthHandler(authSvc),
			Teachers:   handler.NewTeacherHandler(teacherSvc),
			Students:   handler.NewStudentHandler(studentSvc),
			Lectures:   handler.NewLectureHandler(lectureSvc),
			Payments:   handler.NewPaymentHandler(paymentSvc),
			Tests:      handler.NewTestHandler(testSvc),
			Attendance: handler.NewAttendanceHandler(attendanceSvc),
			Dashboard:  handler.NewDashboardHandler(dashboardSvc),
			Reports:    handler.NewReportHandler(reportSvc),
			Uploads:    handler.NewUploadHandler(uploadSvc),
			Metrics:    handler.NewMetricsHandler(metricsSvc, readiness),
		},
		Routes: handler.RouteOptions{
			Authenticate: middleware.JWT(authSvc),
			AuditLog:     userRepo,
			Logger:       logr,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newObjectStore picks S3 when a bucket is configured and falls back to the
// local directory, which the router then serves under /uploads.
func newObjectStore(ctx context.Context, cfg config.UploadConfig) (storage.ObjectStore, string, error) {
	if cfg.Bucket != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg)
		return s3Store, "", err
	}
	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		publicURL = "/uploads"
	}
	local, err := storage.NewLocalStorage(cfg.LocalDir, publicURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}
