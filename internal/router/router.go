// Package router assembles the HTTP surface of the API.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/handler"
	"github.com/noah-isme/formation-lms-api/internal/middleware"
	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	"github.com/noah-isme/formation-lms-api/pkg/config"
	"github.com/noah-isme/formation-lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/formation-lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/formation-lms-api/pkg/middleware/requestid"
)

// Handlers lists every HTTP handler mounted by New.
type Handlers struct {
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Admin      *handler.AdminHandler
	Formations *handler.FormationHandler
	Courses    *handler.CourseHandler
	Lessons    *handler.LessonHandler
	Quizzes    *handler.QuizHandler
	Enrollment *handler.EnrollmentHandler
	Invoices   *handler.InvoiceHandler
	Analytics  *handler.AnalyticsHandler
	Metrics    *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	Tokens    middleware.TokenValidator
	Observer  middleware.RequestObserver
	Audit     middleware.AuditWriter
	StaticDir string
}

// New builds the gin engine with global middleware and every route.
func New(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Storage.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Observer))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.StaticDir != "" {
		r.Static(cfg.Storage.PublicPrefix, opts.StaticDir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	jwt := middleware.JWT(opts.Tokens)
	optional := middleware.OptionalJWT(opts.Tokens)
	admin := middleware.RequireRoles(models.RoleAdmin)
	formateur := middleware.RequireRoles(models.RoleFormateur)
	author := middleware.RequireRoles(models.RoleFormateur, models.RoleAdmin)
	student := middleware.RequireRoles(models.RoleStudent)
	contentAudit := middleware.Audit(opts.Audit, opts.Logger, models.AuditActionContentWrite, "content")
	formationAudit := middleware.Audit(opts.Audit, opts.Logger, models.AuditActionFormationWrite, "formations")

	api := r.Group(cfg.APIPrefix, middleware.UUIDParams("id"))

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", jwt, h.Auth.Logout)
	auth.POST("/change-password", jwt, h.Auth.ChangePassword)
	auth.GET("/me", jwt, h.Auth.Me)

	users := api.Group("/users", jwt)
	users.GET("/me", h.Users.Me)
	users.PUT("/me", h.Users.UpdateMe)
	users.POST("/me/avatar", h.Users.UploadAvatar)
	users.GET("/:id", h.Users.Get)

	adm := api.Group("/admin", jwt, admin)
	adm.GET("/users", h.Admin.ListUsers)
	adm.POST("/users", h.Admin.CreateUser)
	adm.DELETE("/users/:id", h.Admin.DeleteUser)
	adm.PATCH("/formateurs/:id/status", h.Admin.UpdateFormateurStatus)
	adm.DELETE("/formations/:id", h.Admin.DeleteFormation)
	adm.GET("/enrollments", h.Admin.ListEnrollments)
	adm.GET("/audit-logs", h.Admin.AuditLogs)

	analytics := adm.Group("/analytics", middleware.WithResponseMeta())
	analytics.GET("/overview", h.Analytics.Overview)
	analytics.GET("/revenue", h.Analytics.Revenue)
	analytics.GET("/revenue/export", h.Analytics.ExportRevenue)
	analytics.GET("/top-formations", h.Analytics.TopFormations)
	analytics.GET("/system", h.Analytics.System)

	api.GET("/formations", h.Formations.Catalog)
	api.GET("/formations/:id", optional, h.Formations.Get)
	api.POST("/formations", jwt, formateur, formationAudit, h.Formations.Create)
	api.PUT("/formations/:id", jwt, formateur, formationAudit, h.Formations.Update)
	// Delete and publish write their own FORMATION_DELETE/FORMATION_PUBLISH entries.
	api.DELETE("/formations/:id", jwt, formateur, h.Formations.Delete)
	api.POST("/formations/:id/publish", jwt, formateur, h.Formations.Publish)
	api.POST("/formations/:id/courses", jwt, author, contentAudit, h.Courses.Create)
	api.POST("/formations/:id/enroll", jwt, student, h.Enrollment.Enroll)
	api.GET("/formations/:id/result", jwt, student, h.Quizzes.FormationResult)

	mine := api.Group("/formateur", jwt, formateur, middleware.WithResponseMeta())
	mine.GET("/formations", h.Formations.Mine)
	mine.GET("/enrollments", h.Enrollment.Formateur)
	mine.GET("/analytics", h.Analytics.Formateur)

	courses := api.Group("/courses", jwt)
	courses.GET("/:id", h.Courses.Get)
	courses.PUT("/:id", author, contentAudit, h.Courses.Update)
	courses.DELETE("/:id", author, contentAudit, h.Courses.Delete)
	courses.POST("/:id/publish", author, contentAudit, h.Courses.Publish)
	courses.POST("/:id/unpublish", author, contentAudit, h.Courses.Unpublish)
	courses.GET("/:id/lessons", h.Lessons.List)
	courses.POST("/:id/lessons", author, contentAudit, h.Lessons.Create)
	courses.POST("/:id/quizzes", author, contentAudit, h.Quizzes.Create)
	courses.POST("/:id/finalize", student, h.Quizzes.Finalize)
	courses.GET("/:id/result", student, h.Quizzes.CourseResult)

	lessons := api.Group("/lessons", jwt)
	lessons.GET("/:id", h.Lessons.Get)
	lessons.PUT("/:id", author, contentAudit, h.Lessons.Update)
	lessons.DELETE("/:id", author, contentAudit, h.Lessons.Delete)

	quizzes := api.Group("/quizzes", jwt)
	quizzes.GET("/:id", h.Quizzes.Get)
	quizzes.DELETE("/:id", author, contentAudit, h.Quizzes.Delete)
	quizzes.POST("/:id/submit", student, h.Quizzes.Submit)

	api.POST("/enrollments/:id/approve", jwt, author, h.Enrollment.Approve)
	api.POST("/enrollments/:id/reject", jwt, author, h.Enrollment.Reject)

	studentMe := api.Group("/students/me", jwt, student)
	studentMe.GET("/enrollments", h.Enrollment.Mine)
	studentMe.GET("/invoices", h.Invoices.Mine)
	studentMe.GET("/results", h.Quizzes.MyResults)

	api.GET("/invoices/download", h.Invoices.Download)
	api.GET("/invoices/:id", jwt, h.Invoices.Get)
	api.GET("/invoices/:id/download-url", jwt, h.Invoices.DownloadURL)

	return r
}

// compile-time checks for the collaborators main wires in.
var (
	_ middleware.TokenValidator  = (*service.AuthService)(nil)
	_ middleware.RequestObserver = (*service.MetricsService)(nil)
)
