package middleware

import (
	"time"

	"djbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestLoggerMiddleware tags each request with an id, logs it once it
// completes and feeds recorder. recorder may be nil.
func RequestLoggerMiddleware(log *logger.ContextLogger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, duration.Milliseconds())
		if recorder != nil {
			recorder.RecordHTTPRequest(c.Request.Method, routeOf(c), status, duration)
		}
	}
}
