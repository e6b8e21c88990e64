package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
)

func newRateLimitedRouter(config middleware.RateLimitMiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.NewRateLimitMiddleware(config).Middleware())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRateLimitMiddleware(t *testing.T) {
	router := newRateLimitedRouter(middleware.RateLimitMiddlewareConfig{
		RequestsPerSecond: 1,
		Burst:             3,
	})

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		req, err := http.NewRequest("GET", "/ping", nil)
		assert.NilError(t, err)
		router.ServeHTTP(recorder, req)
		statuses = append(statuses, recorder.Code)
	}

	// The burst admits the first three, the rest are rejected
	assert.DeepEqual(t, []int{200, 200, 200, 429, 429}, statuses)
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	router := newRateLimitedRouter(middleware.RateLimitMiddlewareConfig{})

	for i := 0; i < 20; i++ {
		recorder := httptest.NewRecorder()
		req, err := http.NewRequest("GET", "/ping", nil)
		assert.NilError(t, err)
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}
