package api

import (
	"github.com/RishiKendai/paperlit/internal/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config, docs DocumentService, queue JobQueue) *gin.Engine {
	router := gin.Default()

	handler := NewHandler(cfg, docs, queue)

	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	// Middleware
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	// API routes (with auth and rate limiting)
	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/documents", handler.UploadDocument)
		api.GET("/documents", handler.ListDocuments)
		api.GET("/documents/:id", handler.GetDocument)
		api.PUT("/documents/:id", handler.ReplaceDocument)
		api.DELETE("/documents/:id", handler.DeleteDocument)
		api.GET("/documents/:id/file", handler.DocumentFile)
		api.GET("/documents/:id/status", handler.DocumentStatus)
		api.POST("/originality", handler.CalculateOriginality)
	}

	return router
}
