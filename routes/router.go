package routes

import (
	"net/http"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/middleware"
	"github.com/baibhavbaidya/researchmind-backend/services"

	"github.com/gin-gonic/gin"
)

// SetupRouter mounts the health check and the authenticated /api routes.
func SetupRouter(router *gin.Engine, svc *services.ResearchService, auth *middleware.AuthMiddleware, limits Limits) {
	router.GET("/health", func(c *gin.Context) {
		stats := svc.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"active_users": stats.ActiveUsers,
			"open_runs":    stats.OpenRuns,
			"chunks":       stats.Chunks,
			"timestamp":    time.Now(),
		})
	})

	api := router.Group("/api")
	api.Use(auth.RequireAuth())

	SetupResearchRoutes(api, svc, limits)
	SetupDocumentRoutes(api, svc, limits)
	SetupHistoryRoutes(api, svc)
}
