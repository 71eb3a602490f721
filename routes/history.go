package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/history"
	"github.com/baibhavbaidya/researchmind-backend/middleware"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/baibhavbaidya/researchmind-backend/services"
	"github.com/baibhavbaidya/researchmind-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupHistoryRoutes(api *gin.RouterGroup, svc *services.ResearchService) {
	api.GET("/history", handleListHistory(svc))
	api.DELETE("/history", handleClearHistory(svc))
	api.GET("/history/export", handleExportHistory(svc))
	api.DELETE("/account", handleDeleteAccount(svc))
}

func handleListHistory(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 0 {
			utils.RespondWithBadRequest(c, "limit must be a non-negative integer", nil)
			return
		}

		entries, err := svc.History(c.Request.Context(), middleware.GetUserID(c), limit)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
	}
}

func handleClearHistory(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearHistory(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "History cleared", "deleted": n})
	}
}

func handleExportHistory(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := svc.ExportHistory(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		filename := fmt.Sprintf("research_history_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, history.XLSXContentType, data)
	}
}

func handleDeleteAccount(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteAccount(c.Request.Context(), middleware.GetUserID(c)); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account and all associated data deleted"})
	}
}
