package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyboarder/internal/logging"
	"storyboarder/internal/services"
)

const requestIDHeader = "X-Request-ID"

// requestID tags each request context with a correlation identifier, taken
// from the X-Request-ID header when the client sends one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// requestLogger replaces gin's stdout logger with structured request logs.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
			logging.Int("status", status),
			logging.Duration("duration", time.Since(start)),
		}
		log := logging.WithContext(c.Request.Context(), logger)
		if status >= 500 {
			log.Warn("api request failed", logging.Args(attrs...)...)
			return
		}
		log.Debug("api request", logging.Args(attrs...)...)
	}
}
