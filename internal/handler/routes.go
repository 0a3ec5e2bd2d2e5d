package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/middleware"
	"github.com/noah-isme/ndc-portal-api/internal/models"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Course   *CourseHandler
	Request  *NDCRequestHandler
	Approval *ApprovalHandler
	Export   *ExportHandler
	Metrics  *MetricsHandler
	// File is nil when photos are served straight from the object store.
	File *FileHandler
}

// RouteConfig carries the cross-cutting dependencies of the route table.
type RouteConfig struct {
	APIPrefix     string
	Tokens        middleware.TokenValidator
	Audit         middleware.AuditWriter
	Logger        *zap.Logger
	EnableMetrics bool
}

// RegisterRoutes mounts the ops endpoints on the engine root and the API under cfg.APIPrefix.
func RegisterRoutes(r *gin.Engine, h Handlers, cfg RouteConfig) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		if cfg.EnableMetrics {
			r.GET("/metrics", h.Metrics.Prometheus)
		}
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", h.Auth.SignUp)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	if h.File != nil {
		api.GET("/files/photos",
			middleware.Audit(cfg.Audit, cfg.Logger, models.AuditActionPhotoDownload, "ndc_request_photo"),
			h.File.Photo,
		)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(cfg.Tokens))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/profile", h.User.Profile)
	secured.PUT("/profile", h.User.UpdateProfile)
	secured.PUT("/profile/password", h.Auth.ChangePassword)

	superAdmin := middleware.RequireRoles(models.RoleSuperAdmin)

	secured.GET("/courses", h.Course.List)
	secured.POST("/courses", superAdmin, h.Course.Create)

	requests := secured.Group("/requests")
	requests.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleSuperAdmin), h.Request.Submit)
	requests.GET("", superAdmin, h.Request.List)
	requests.GET("/mine", middleware.RequireRoles(models.RoleStudent), h.Request.ListMine)
	requests.GET("/export.csv", superAdmin, h.Export.RequestsCSV)
	requests.GET("/:id", h.Request.Get)
	requests.GET("/:id/export.pdf", superAdmin, h.Export.RequestPDF)
	requests.GET("/:id/approvals", h.Approval.Track)
	requests.PUT("/:id/approvals/:adminId",
		middleware.RequireRoles(models.RoleAdmin),
		middleware.RequireSelf("adminId"),
		h.Approval.RecordDecision,
	)
	requests.POST("/:id/approvals/:adminId/review", h.Approval.ReopenReview)

	secured.GET("/track/:ticket", h.Approval.TrackByTicket)
	secured.GET("/approvals/pending", middleware.RequireRoles(models.RoleAdmin), h.Approval.Pending)

	users := secured.Group("/users", superAdmin)
	users.GET("", h.User.List)
	users.POST("", h.User.Create)
	users.PATCH("/:id/role", h.User.UpdateRole)
}
