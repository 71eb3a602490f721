package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/middleware"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/baibhavbaidya/researchmind-backend/services"
	"github.com/baibhavbaidya/researchmind-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupDocumentRoutes(api *gin.RouterGroup, svc *services.ResearchService, limits Limits) {
	// multipart overhead on top of the file itself
	upload := api.Group("/upload", middleware.RequestSizeLimit(limits.MaxFileSize+1<<20))
	upload.POST("", handleUpload(svc, limits.MaxFileSize))
	upload.POST("/async", handleAsyncUpload(svc, limits.MaxFileSize))
	upload.GET("/jobs/:id", handleUploadJob(svc))

	api.GET("/documents", handleListDocuments(svc))
	api.DELETE("/documents", handleClearDocuments(svc))
	api.DELETE("/documents/:filename", handleDeleteDocument(svc))
}

// readUpload returns the multipart "file" field. Content beyond maxSize is
// reported as ErrTooLarge without being buffered.
func readUpload(c *gin.Context, maxSize int64) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: request body exceeds %d bytes", apperr.ErrTooLarge, tooLarge.Limit)
		}
		return "", nil, apperr.Validation("a PDF file is required in the \"file\" field")
	}
	if maxSize > 0 && header.Size > maxSize {
		return "", nil, fmt.Errorf("%w: file exceeds %d MB", apperr.ErrTooLarge, maxSize/(1024*1024))
	}

	f, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > maxSize {
		return "", nil, fmt.Errorf("%w: file exceeds %d MB", apperr.ErrTooLarge, maxSize/(1024*1024))
	}
	return header.Filename, content, nil
}

func handleUpload(svc *services.ResearchService, maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, content, err := readUpload(c, maxSize)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()
		doc, err := svc.Upload(ctx, middleware.GetUserID(c), filename, content)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.UploadResponse{
			Message:  fmt.Sprintf("%s indexed", doc.Filename),
			Filename: doc.Filename,
			Chunks:   doc.ChunkCount,
			Pages:    doc.PageCount,
		})
	}
}

func handleAsyncUpload(svc *services.ResearchService, maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, content, err := readUpload(c, maxSize)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		job, err := svc.EnqueueUpload(c.Request.Context(), middleware.GetUserID(c), filename, content)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
	}
}

func handleUploadJob(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.UploadJob(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func handleListDocuments(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := svc.ListDocuments(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

func handleClearDocuments(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearDocuments(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All documents cleared", "deleted": n})
	}
}

func handleDeleteDocument(svc *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")
		if err := svc.DeleteDocument(c.Request.Context(), middleware.GetUserID(c), filename); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s deleted", filename)})
	}
}
