package middleware

import (
	"context"
	"net/http"

	"djbook/internal/core/domain"
	"djbook/internal/core/services"
	"djbook/pkg/distributed"
	"djbook/pkg/errors"
	"djbook/pkg/retry"
	"djbook/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMappings translates core errors to HTTP responses. Order matters:
// the first matching target wins.
var ErrorMappings = []errors.Mapping{
	{Target: validation.ErrInvalid, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidAnchor, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidRole, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},

	{Target: domain.ErrUserNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrVenueNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrBookingNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},

	{Target: domain.ErrUserExists, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrVenueExists, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrVenueClosed, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrInvalidStatusTransition, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrConcurrentUpdateConflict, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: retry.ErrExhausted, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},

	{Target: domain.ErrInvalidCredentials, Code: errors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
	{Target: services.ErrInvalidToken, Code: errors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
	{Target: services.ErrExpiredToken, Code: errors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},

	{Target: domain.ErrPermanentlyBanned, Code: errors.ErrCodeBanned, HTTPStatus: http.StatusForbidden},
	{Target: domain.ErrForbidden, Code: errors.ErrCodeForbidden, HTTPStatus: http.StatusForbidden},

	{Target: distributed.ErrLockTimeout, Code: errors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: context.DeadlineExceeded, Code: errors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
}

// ErrorHandlerMiddleware handles application errors and returns appropriate HTTP responses
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := errors.Translate(err, ErrorMappings)

		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err.Error(),
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed", fields...)
		} else {
			logger.Infow("request rejected", fields...)
		}

		if c.Writer.Written() {
			return
		}
		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
