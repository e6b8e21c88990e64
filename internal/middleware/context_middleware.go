package middleware

import (
	"authgate/internal/config"
	"authgate/internal/service"

	"github.com/gin-gonic/gin"
)

// ContextMiddleware resolves the session cookie into a UserContext on every
// request. Handlers never touch the cookie store directly.

type ContextMiddleware struct {
	session *service.SessionService
}

func NewContextMiddleware(session *service.SessionService) *ContextMiddleware {
	return &ContextMiddleware{
		session: session,
	}
}

func (m *ContextMiddleware) Init() error {
	return nil
}

func (m *ContextMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := m.session.GetUser(c)

		c.Set("context", &config.UserContext{
			UserID:     userID,
			IsLoggedIn: userID != "",
		})

		c.Next()
	}
}
