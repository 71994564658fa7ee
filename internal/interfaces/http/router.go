package http

import (
	"github.com/gin-gonic/gin"

	"payguard/internal/interfaces/http/handlers"
	"payguard/internal/interfaces/http/middleware"
	"payguard/internal/shared/config"
	"payguard/internal/shared/logger"
)

// Router represents the HTTP router configuration
type Router struct {
	engine              *gin.Engine
	verificationHandler *handlers.VerificationHandler
	rateLimiter         *middleware.RateLimiter
	cfg                 *config.ServerConfig
	logger              logger.Interface
}

// NewRouter creates a new HTTP router. rateLimiter may be nil when Redis is
// disabled; submission then runs unthrottled.
func NewRouter(
	verificationHandler *handlers.VerificationHandler,
	rateLimiter *middleware.RateLimiter,
	cfg *config.ServerConfig,
	log logger.Interface,
) *Router {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	return &Router{
		engine:              gin.New(),
		verificationHandler: verificationHandler,
		rateLimiter:         rateLimiter,
		cfg:                 cfg,
		logger:              log,
	}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(r.cfg.AllowedOrigins))
	r.engine.Use(middleware.SecurityHeaders())

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api")

	payments := api.Group("/payments")
	if r.rateLimiter != nil {
		payments.Use(r.rateLimiter.Limit())
	}
	payments.POST("", r.verificationHandler.SubmitPayment)
	payments.GET("/:id", r.verificationHandler.GetVerification)

	admin := api.Group("/admin/verifications")
	admin.GET("", r.verificationHandler.ListVerifications)
	admin.GET("/stats", r.verificationHandler.GetStats)
	admin.GET("/:id", r.verificationHandler.GetVerification)
	admin.POST("/:id/approve", r.verificationHandler.ApprovePayment)
	admin.POST("/:id/reject", r.verificationHandler.RejectPayment)
	admin.POST("/:id/recheck", r.verificationHandler.RecheckPayment)
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
