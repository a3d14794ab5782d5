package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// ErrorCode classifies an API error.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL_SERVER_ERROR"
)

// retryAfterSeconds is sent with 503s the caller can safely repeat.
const retryAfterSeconds = "1"

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func newAPIError(code ErrorCode, message string) APIError {
	return APIError{Code: code, Message: message}
}

// statusFor maps sentinel errors onto HTTP statuses.
func statusFor(err error) (int, ErrorCode) {
	switch {
	case apperrors.IsNotFoundError(err):
		return http.StatusNotFound, ErrCodeNotFound
	case apperrors.IsValidationError(err):
		return http.StatusUnprocessableEntity, ErrCodeInvalidInput
	case apperrors.IsBadRequestError(err):
		return http.StatusBadRequest, ErrCodeBadRequest
	case apperrors.IsDuplicateError(err), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case apperrors.IsTransient(err):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// abortWithError writes the mapped error. Server-side failures hide the
// underlying message.
func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed", zap.Error(err))
		message = http.StatusText(status)
	}
	if status == http.StatusServiceUnavailable && apperrors.IsRetryable(err) {
		c.Header("Retry-After", retryAfterSeconds)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, newAPIError(code, message))
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, newAPIError(ErrCodeBadRequest, message))
}
