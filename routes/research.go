package routes

import (
	"io"
	"net/http"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/middleware"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/baibhavbaidya/researchmind-backend/services"
	"github.com/baibhavbaidya/researchmind-backend/utils"

	"github.com/gin-gonic/gin"
)

// Limits configures the guards in front of the research routes.
type Limits struct {
	MaxFileSize     int64
	RateLimitReqs   int
	RateLimitWindow time.Duration
	Limiter         middleware.Counter
}

func SetupResearchRoutes(api *gin.RouterGroup, svc *services.ResearchService, limits Limits) {
	query := api.Group("")
	if limits.Limiter != nil {
		query.Use(middleware.RateLimitMiddleware(limits.Limiter, limits.RateLimitReqs, limits.RateLimitWindow))
	}

	query.POST("/query", handleQuery(svc))
	query.POST("/query/stream", handleQueryStream(svc))
	query.POST("/followup", handleFollowup(svc))
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return false
	}
	return true
}

// handleQuery runs the pipeline and answers with the final state once it is done.
func handleQuery(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if !bindJSON(c, &req) {
			return
		}

		run, err := svc.RunQuery(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.Header("X-Run-ID", run.ID)

		st, err := run.Result(c.Request.Context())
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// handleQueryStream streams progress events as server-sent events. The last
// event is "complete" carrying the final state, or "error".
func handleQueryStream(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if !bindJSON(c, &req) {
			return
		}

		ctx := c.Request.Context()
		run, err := svc.RunQuery(ctx, middleware.GetUserID(c), req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.Header("X-Run-ID", run.ID)
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		for {
			ev, err := run.Events.Next(ctx)
			if err != nil {
				if err != io.EOF {
					logger.Debug("Progress stream closed by client", "run_id", run.ID, "error", err)
				}
				return
			}
			c.SSEvent(string(ev.Status), ev)
			c.Writer.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

func handleFollowup(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FollowupRequest
		if !bindJSON(c, &req) {
			return
		}

		answer, err := svc.Followup(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.FollowupResponse{Answer: answer})
	}
}
