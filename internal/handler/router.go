package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/middleware"
	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/internal/service"
)

// Routes groups the handlers and middleware mounted under the API prefix.
type Routes struct {
	Prefix       string
	Registration *RegistrationHandler
	Admin        *AdminHandler
	Auth         *AuthHandler
	Metrics      *MetricsHandler
	AuthService  *service.AuthService
	MetricsSvc   *service.MetricsService
	RateLimiter  gin.HandlerFunc
	AuditLogger  *zap.Logger
}

// Register mounts every endpoint on r.
func (rt Routes) Register(r *gin.Engine) {
	r.Use(middleware.Metrics(rt.MetricsSvc))

	r.GET("/health", rt.Metrics.Health)
	r.GET("/ready", rt.Metrics.Ready)
	r.GET("/metrics", rt.Metrics.Prometheus)

	api := r.Group(rt.Prefix)
	api.Use(middleware.WithResponseMeta())

	public := api.Group("/registration")
	if rt.RateLimiter != nil {
		public.Use(rt.RateLimiter)
	}
	public.POST("/create", rt.Registration.Create)
	public.POST("/validate", rt.Registration.Validate)
	public.POST("/verify", rt.Registration.Verify)

	api.POST("/admin/login", rt.rateLimited(), rt.Auth.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(rt.AuthService), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/registrations", middleware.Audit(rt.AuditLogger, "list", "registrations"), rt.Admin.Registrations)
	admin.GET("/export", middleware.Audit(rt.AuditLogger, "export", "registrations"), rt.Admin.Export)
	admin.POST("/manual-registration", middleware.Audit(rt.AuditLogger, "create", "registrations"), rt.Admin.ManualRegistration)
	admin.GET("/statistics", middleware.Audit(rt.AuditLogger, "read", "statistics"), rt.Admin.Statistics)
}

func (rt Routes) rateLimited() gin.HandlerFunc {
	if rt.RateLimiter != nil {
		return rt.RateLimiter
	}
	return func(c *gin.Context) { c.Next() }
}
