package api

import (
	"github.com/PurpleMyst/redditbg/internal/api/handler"
	"github.com/PurpleMyst/redditbg/internal/api/middleware"
	"github.com/PurpleMyst/redditbg/internal/config"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	status *handler.StatusHandler,
	refresh *handler.RefreshHandler,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", status.Status)
		v1.POST("/refresh", refresh.Refresh)
	}

	return r
}
