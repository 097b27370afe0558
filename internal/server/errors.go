package server

import (
	"errors"
	"net/http"

	"github.com/fieldkit/salesync/internal/session"
	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/syncengine"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrSessionMismatch),
		errors.Is(err, tenant.ErrNoActiveStore):
		return http.StatusUnauthorized, errorPayload{
			Type:    "session_error",
			Message: err.Error(),
		}

	case errors.Is(err, session.ErrInvalidCredential):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}

	case errors.Is(err, storedomain.ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}

	case errors.Is(err, storedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}

	case errors.Is(err, storedomain.ErrConstraintViolation),
		errors.Is(err, storedomain.ErrBookingSynced),
		errors.Is(err, tenant.ErrStoreOpen):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}

	case errors.Is(err, syncengine.ErrSyncInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "sync_in_progress",
			Message: "a sync run is already executing",
		}

	case errors.Is(err, transport.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "server_unavailable",
			Message: err.Error(),
		}

	case errors.Is(err, transport.ErrRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "server_rejected",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
