package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"mediahub/config"
	"mediahub/metrics"
)

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	h := NewHandler(cfg, deps)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		// Progress stream, one subscriber per task id
		v1.GET("/progress/:taskId", h.handleProgress)

		// Async jobs, acknowledged before they run
		v1.POST("/download/url", h.handleDownloadURL)
		v1.POST("/download/torrent", h.handleDownloadTorrent)
		v1.POST("/process/convert", h.handleConvert)
		v1.GET("/jobs", h.handleListJobs)

		// Synchronous media endpoints
		v1.POST("/process/extract-subtitles", h.handleExtractSubtitles)
		v1.GET("/videos/:filename", h.handleGetVideo)
		v1.GET("/videos/:filename/info", h.handleGetVideoInfo)
	}
	return r
}

// WithCORS wraps the router for browser clients on other origins.
func WithCORS(cfg *config.Config, h http.Handler) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
	})
	return c.Handler(h)
}
