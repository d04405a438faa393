package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docfields/internal/handler"
	"docfields/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	extractionH *handler.ExtractionHandler,
	healthH *handler.HealthHandler,
	corsOrigins []string,
	log *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(corsOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	v1.GET("/profiles", extractionH.Profiles)

	extractions := v1.Group("/extractions")
	extractions.POST("", extractionH.Create)
	extractions.POST("/upload", extractionH.Upload)
	extractions.GET("", extractionH.List)
	extractions.GET("/:id", extractionH.GetByID)
	extractions.PATCH("/:id/fields", extractionH.CorrectFields)
	extractions.DELETE("/:id", extractionH.Delete)
	extractions.GET("/:id/review.csv", extractionH.ReviewCSV)
	extractions.GET("/:id/review.xlsx", extractionH.ReviewXLSX)

	return r
}
