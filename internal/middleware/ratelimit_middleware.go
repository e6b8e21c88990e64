package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware keeps a token bucket per caller identity (client IP +
// path). The decision is an opaque allow/deny, protocol correctness never
// depends on it.

type RateLimitMiddlewareConfig struct {
	RequestsPerSecond int
	Burst             int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddleware struct {
	config   RateLimitMiddlewareConfig
	mutex    sync.Mutex
	limiters map[string]*limiterEntry
}

func NewRateLimitMiddleware(config RateLimitMiddlewareConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config:   config,
		limiters: make(map[string]*limiterEntry),
	}
}

func (m *RateLimitMiddleware) Init() error {
	go m.cleanupLoop()
	return nil
}

func (m *RateLimitMiddleware) allow(identifier string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.limiters[identifier]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.Burst),
		}
		m.limiters[identifier] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (m *RateLimitMiddleware) cleanupLoop() {
	for range time.Tick(5 * time.Minute) {
		m.mutex.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for identifier, entry := range m.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(m.limiters, identifier)
			}
		}
		m.mutex.Unlock()
	}
}

func (m *RateLimitMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.config.RequestsPerSecond <= 0 {
			c.Next()
			return
		}

		identifier := c.ClientIP() + " " + c.Request.URL.Path
		if !m.allow(identifier) {
			log.Warn().Str("identifier", identifier).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests, slow down.",
			})
			return
		}

		c.Next()
	}
}
