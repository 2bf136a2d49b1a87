package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/service"
	"github.com/noah-isme/coaching-center-api/pkg/logger"
	"github.com/noah-isme/coaching-center-api/pkg/middleware/cors"
	"github.com/noah-isme/coaching-center-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth       *AuthHandler
	Teachers   *TeacherHandler
	Students   *StudentHandler
	Lectures   *LectureHandler
	Payments   *PaymentHandler
	Tests      *TestHandler
	Attendance *AttendanceHandler
	Dashboard  *DashboardHandler
	Reports    *ReportHandler
	Uploads    *UploadHandler
	Metrics    *MetricsHandler
}

// RouteOptions carries the cross cutting middleware for the API group.
type RouteOptions struct {
	// Authenticate places claims on the context; normally middleware.JWT.
	Authenticate gin.HandlerFunc
	// AuditLog persists payment writes. Nil disables auditing.
	AuditLog middleware.AuditLogWriter
	Logger   *zap.Logger
}

// RouterConfig configures the gin engine built by NewRouter.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	// StaticDir serves locally stored uploads under /uploads when set.
	StaticDir  string
	EnableDocs bool
	Metrics    *service.MetricsService
	Handlers   Handlers
	Routes     RouteOptions
}

// NewRouter builds the HTTP engine with global middleware, probes and the API routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Routes.Logger == nil {
		cfg.Routes.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(cfg.Routes.Logger))
	r.Use(cors.New(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", cfg.Handlers.Metrics.Health)
	r.GET("/ready", cfg.Handlers.Metrics.Ready)
	r.GET("/metrics", cfg.Handlers.Metrics.Prometheus)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.StaticDir != "" {
		r.Static("/uploads", cfg.StaticDir)
	}

	RegisterRoutes(r.Group(cfg.APIPrefix), cfg.Handlers, cfg.Routes)
	return r
}

// RegisterRoutes mounts the API on the given group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, opts RouteOptions) {
	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)
	self := middleware.RoleSelf

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.AuditLog, opts.Logger, action, resource)
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/register", h.Auth.Register)

	secured := api.Group("")
	secured.Use(opts.Authenticate)

	secured.GET("/auth/me", h.Auth.Me)
	secured.PUT("/auth/password", h.Auth.ChangePassword)
	secured.PUT("/auth/credentials", middleware.RBAC(admin), audit(models.AuditActionCredentialsUpdate, "users"), h.Auth.UpdateCredentials)

	teachers := secured.Group("/teachers")
	teachers.GET("", middleware.RBAC(admin), h.Teachers.List)
	teachers.POST("", middleware.RBAC(admin), h.Teachers.Create)
	teachers.GET("/:id", middleware.RBAC(admin, self), h.Teachers.Get)
	teachers.PUT("/:id", middleware.RBAC(admin), h.Teachers.Update)
	teachers.DELETE("/:id", middleware.RBAC(admin), h.Teachers.Delete)
	teachers.GET("/:id/payments", middleware.RBAC(admin, self), h.Teachers.Payments)
	teachers.GET("/:id/payments/:month/slip", middleware.RBAC(admin, self), h.Reports.Payslip)

	students := secured.Group("/students")
	students.GET("", middleware.RBAC(admin), h.Students.List)
	students.POST("", middleware.RBAC(admin), h.Students.Create)
	students.GET("/:id", middleware.RBAC(admin, self), h.Students.Get)
	students.PUT("/:id", middleware.RBAC(admin), h.Students.Update)
	students.DELETE("/:id", middleware.RBAC(admin), h.Students.Delete)

	lectures := secured.Group("/lectures", middleware.RBAC(admin, teacher))
	lectures.GET("", h.Lectures.List)
	lectures.POST("", h.Lectures.Create)
	lectures.GET("/:id", h.Lectures.Get)
	lectures.PUT("/:id", h.Lectures.Update)
	lectures.DELETE("/:id", h.Lectures.Delete)

	payments := secured.Group("/payments")
	payments.GET("/teacher/:teacherId", middleware.RBAC(admin), h.Payments.ListSettlements)
	payments.POST("/teacher/:teacherId", middleware.RBAC(admin), audit(models.AuditActionSettlementCreate, "teacher_payments"), h.Payments.CreateSettlement)
	payments.POST("/teacher/:teacherId/adjustments", middleware.RBAC(admin), audit(models.AuditActionAdjustmentCreate, "teacher_payments"), h.Payments.CreateAdjustment)
	payments.DELETE("/teacher/settlements/:paymentId", middleware.RBAC(admin), audit(models.AuditActionSettlementDelete, "teacher_payments"), h.Payments.DeleteSettlement)
	payments.GET("/student/:studentId", middleware.RBAC(admin), h.Payments.StudentBreakdown)
	payments.GET("/student/:studentId/statement", middleware.RBAC(admin, self), h.Reports.Statement)
	payments.GET("/personalstudent/:studentId", middleware.RBAC(admin, self), h.Payments.StudentBreakdown)
	payments.POST("/student/:studentId/installment", middleware.RBAC(admin), audit(models.AuditActionInstallmentCreate, "student_payments"), h.Payments.CreateInstallment)
	payments.PATCH("/student/installments/:paymentId/status", middleware.RBAC(admin), audit(models.AuditActionInstallmentStatus, "student_payments"), h.Payments.UpdateInstallmentStatus)

	tests := secured.Group("/tests", middleware.RBAC(admin, teacher))
	tests.GET("", h.Tests.List)
	tests.POST("", h.Tests.Create)
	tests.GET("/:id", h.Tests.Get)
	tests.POST("/:id/marks", h.Tests.RecordMarks)

	secured.POST("/attendance", middleware.RBAC(admin, teacher), h.Attendance.Mark)
	secured.GET("/attendance/student/:studentId", middleware.RBAC(admin, teacher, self), h.Attendance.ForStudent)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/admin", middleware.RBAC(admin), h.Dashboard.Admin)
	dashboard.GET("/teacher", middleware.RBAC(teacher), h.Dashboard.Teacher)
	dashboard.GET("/student", middleware.RBAC(student), h.Dashboard.Student)

	secured.POST("/uploads/images", h.Uploads.UploadImage)
	secured.DELETE("/uploads/images/*key", middleware.RBAC(admin), h.Uploads.DeleteImage)
	secured.GET("/metrics/summary", middleware.RBAC(admin), h.Metrics.Summary)
}
