package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/middleware"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/ratelimit"
	"github.com/SamiTelo/API-Football/internal/security"
	"github.com/SamiTelo/API-Football/internal/service"
)

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Dependencies struct {
	Log     zerolog.Logger
	Config  *config.AppConfig
	Auth    *service.AuthService
	Upload  *service.UploadService
	Tokens  *security.TokenSigner
	Users   middleware.UserLoader
	Limiter middleware.Limiter
	Metrics *metrics.Metrics
	Checks  []HealthCheck
}

type HandlerSet struct {
	log           zerolog.Logger
	cfg           *config.AppConfig
	authService   *service.AuthService
	uploadService *service.UploadService
	tokens        *security.TokenSigner
	users         middleware.UserLoader
	limiter       middleware.Limiter
	metrics       *metrics.Metrics
	checks        []HealthCheck
}

func NewHandlerSet(deps Dependencies) HandlerSet {
	registerValidators()

	return HandlerSet{
		log:           deps.Log,
		cfg:           deps.Config,
		authService:   deps.Auth,
		uploadService: deps.Upload,
		tokens:        deps.Tokens,
		users:         deps.Users,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		checks:        deps.Checks,
	}
}

// Routes mounts every endpoint on router.
func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	authenticated := middleware.Auth(h.tokens, h.users)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/login", h.limit("login", h.cfg.RateLimit.Login), h.Login)
		auth.POST("/verify-2fa", h.VerifyTwoFactor)
		auth.POST("/refresh", h.limit("refresh", h.cfg.RateLimit.Refresh), h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/forgot-password", h.limit("forgot_password", h.cfg.RateLimit.ForgotPassword), h.ForgotPassword)
		auth.POST("/reset-password", h.limit("reset_password", h.cfg.RateLimit.ResetPassword), h.ResetPassword)

		auth.GET("/profile", authenticated, h.Profile)
		auth.POST("/create-admin",
			authenticated,
			middleware.RequireRoles(models.RoleSuperAdmin),
			h.CreateAdmin,
		)
	}

	if h.uploadService != nil {
		upload := router.Group("/upload")
		upload.Use(
			authenticated,
			middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		)
		upload.POST("/:kind/:id/image", h.UploadImage)
		upload.GET("/:kind/:id/image", h.GetImage)
	}
}

func (h HandlerSet) limit(scope string, cfg config.LimitConfig) gin.HandlerFunc {
	if !h.cfg.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	rule := ratelimit.Rule{Scope: scope, Limit: cfg.Limit, Window: cfg.Window}
	return middleware.RateLimit(h.limiter, rule, h.metrics, h.log)
}
