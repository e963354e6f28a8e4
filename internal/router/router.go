package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup. Monitor is nil when
// running without Redis.
type Handlers struct {
	WS      *handler.WSHandler
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:       middleware.DefaultBrotliConfig.Quality,
		MinLength:     middleware.DefaultBrotliConfig.MinLength,
		ExcludedPaths: []string{"/metrics", "/ws/"},
	}))

	// ─── Operations ────────────────────────────────────────────────────
	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Examinee WebSocket (rate limited handshake) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(limiter.Middleware())
	{
		ws.GET("/exams/:access_code", handlers.WS.ExamSession)
	}

	// ─── 2. Public API (rate limited) ──────────────────────────────────
	publicAPI := router.Group("/api/v1")
	publicAPI.Use(limiter.Middleware())
	{
		publicAPI.GET("/exams/:access_code", middleware.CacheControl(30*time.Second), handlers.Exam.GetExamInfo)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		adminAPI.GET("/sessions/:id",
			middleware.RequirePermission(service.PermissionSessionsRead),
			handlers.Session.GetSession,
		)
		adminAPI.POST("/cache/exams/:access_code/refresh",
			middleware.RequirePermission(service.PermissionExamsWrite),
			handlers.Exam.RefreshExamCache,
		)
		adminAPI.GET("/system/status", handlers.System.Status)

		if handlers.Monitor != nil {
			adminAPI.GET("/exams/:id/monitor",
				middleware.RequirePermission(service.PermissionExamsMonitor),
				handlers.Monitor.MonitorExamSSE,
			)
		}
	}

	return router
}
