package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig tunes the request logging middleware.
type MiddlewareConfig struct {
	// SkipPaths are matched exactly and logged at debug level only.
	SkipPaths []string
}

// GinMiddleware assigns a request ID and emits one structured log line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, requestID)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		log := FromContext(c.Request.Context()).With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed),
			zap.Any("headers", MaskHeaders(c.Request.Header)),
		)

		if _, ok := skip[c.Request.URL.Path]; ok {
			log.Debug("http request")
			return
		}
		if c.Writer.Status() >= 500 {
			log.Error("http request")
			return
		}
		log.Info("http request")
	}
}
