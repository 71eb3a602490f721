package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// StatusFor maps an application error onto an HTTP status code.
func StatusFor(err error) int {
	var stageErr *apperr.StageError
	switch {
	case errors.As(err, &stageErr):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateFilename), errors.Is(err, apperr.ErrDocumentLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrRetrievalUnavailable), errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError sends err as a standardized error response. Internal
// errors are logged and replaced with a generic message.
func RespondWithAppError(c *gin.Context, err error) {
	status := StatusFor(err)
	code := apperr.Code(err)
	message := err.Error()

	var details interface{}
	var stageErr *apperr.StageError
	if errors.As(err, &stageErr) {
		details = gin.H{"stage": stageErr.Stage, "cause": apperr.Code(stageErr.Cause)}
	}
	if status == http.StatusInternalServerError {
		requestLogger(c).Error("Request failed", "path", c.FullPath(), "error", err)
		message = "An internal error occurred"
	}
	RespondWithError(c, status, code, message, details)
}

func requestLogger(c *gin.Context) *slog.Logger {
	if c.Request == nil {
		return logger.With()
	}
	return logger.FromContext(c.Request.Context())
}
