package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Cacheable metadata reads get demoted to debug so they don't drown the logs.
var quietPathPrefixes = []string{
	"GET /api/health",
	"HEAD /api/health",
	"GET /.well-known/openid-configuration",
	"GET /jwks.json",
}

type ZerologMiddleware struct{}

func NewZerologMiddleware() *ZerologMiddleware {
	return &ZerologMiddleware{}
}

func (m *ZerologMiddleware) Init() error {
	return nil
}

func (m *ZerologMiddleware) quiet(method string, path string) bool {
	request := method + " " + path
	for _, prefix := range quietPathPrefixes {
		if strings.HasPrefix(request, prefix) {
			return true
		}
	}
	return false
}

func (m *ZerologMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		method := c.Request.Method
		path := c.Request.URL.Path
		latency := time.Since(start).String()

		event := log.Info()
		switch {
		case m.quiet(method, path):
			event = log.Debug()
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		event.Str("method", method).Str("path", path).Str("clientIp", c.ClientIP()).Int("status", status).Str("latency", latency).Msg("Request")
	}
}
