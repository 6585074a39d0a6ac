package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// Middleware tags every request with a request_id, installs the
// request-scoped logger in both the gin context and the request context, and
// emits one summary line per request.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)

		reqLog := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLog)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLog))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLog.Error("request", attrs...)
			return
		}
		reqLog.Info("request", attrs...)
	}
}

// FromGin returns the request-scoped logger installed by Middleware, falling
// back to slog.Default() outside a request.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
