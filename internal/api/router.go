package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/picgallery/internal/api/handler"
	"github.com/timmy/picgallery/internal/api/middleware"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/metrics"
	"github.com/timmy/picgallery/internal/service"
)

// RouterConfig holds HTTP settings for SetupRouter.
type RouterConfig struct {
	Mode        string
	CORS        middleware.CORSConfig
	Compression bool
	MaxPageSize int
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	sessions *service.SessionManager,
	media *service.MediaService,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(sessions)
	sessionHandler := handler.NewSessionHandler(sessions, cfg.MaxPageSize)
	mediaHandler := handler.NewMediaHandler(sessions, media)

	r.GET("/health", healthHandler.Health)
	if m != nil {
		// promhttp negotiates its own compression
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	v1 := r.Group("/api/v1")
	if cfg.Compression {
		v1.Use(middleware.Compress())
	}
	{
		// Sessions
		v1.POST("/sessions", sessionHandler.Create)
		v1.GET("/sessions/:id", sessionHandler.Get)
		v1.POST("/sessions/:id/next", sessionHandler.Next)
		v1.POST("/sessions/:id/retry", sessionHandler.Retry)
		v1.POST("/sessions/:id/refresh", sessionHandler.Refresh)
		v1.PUT("/sessions/:id/page-size", sessionHandler.SetPageSize)
		v1.DELETE("/sessions/:id", sessionHandler.Close)

		// Save / share
		v1.POST("/sessions/:id/images/:imageId/save", mediaHandler.Save)
		v1.POST("/sessions/:id/images/:imageId/share", mediaHandler.Share)
		v1.GET("/saved", mediaHandler.ListSaved)
	}

	return r
}
