package ui

import (
	"errors"
	"log"
	"net/http"

	"tidyframe/domain/core"
	apperrors "tidyframe/internal/errors"

	"github.com/gin-gonic/gin"
)

const noDataMessage = "No data loaded. Please upload a file first."

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrSavedFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrNoData):
		return http.StatusBadRequest
	case core.IsClientError(err):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeValidationError, apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Server errors are logged with the route.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	switch {
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrNoData):
		message = noDataMessage
	case status == http.StatusInternalServerError:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = "An unexpected error occurred: " + err.Error()
	}
	c.JSON(status, gin.H{"error": message})
}
