package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rezonia/facturx-engine/internal/logger"
)

// Header and context keys
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = "X-API-Key"

	ctxRequestID = "request_id"
	ctxClient    = "client"
)

// RequestID reuses the caller's request id or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ctxRequestID, reqID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Next()
	}
}

// BodyLimit caps the request body; reading past n bytes fails.
// A non-positive n means DefaultMaxBodyBytes.
func BodyLimit(n int64) gin.HandlerFunc {
	if n <= 0 {
		n = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("request_id", c.GetString(ctxRequestID)).
			Str("client", c.GetString(ctxClient)).
			Msg("HTTP request")
	}
}

// APIKeyAuth rejects requests whose X-API-Key matches no configured client.
// With no clients every request passes.
func APIKeyAuth(clients map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(clients) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderAPIKey)
		if name, ok := lookupClient(clients, key); ok {
			c.Set(ctxClient, name)
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "clé API invalide ou manquante"})
	}
}

func lookupClient(clients map[string]string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for name, expected := range clients {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(key)) == 1 {
			return name, true
		}
	}
	return "", false
}
