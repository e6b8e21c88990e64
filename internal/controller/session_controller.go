package controller

import (
	"net/http"

	"authgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type LoginRequest struct {
	UserID string `json:"user_id"`
}

type SessionControllerConfig struct {
	// EnableDevLogin exposes an unauthenticated login endpoint. It exists so
	// the flow can be driven without the dashboard in front and must stay off
	// in production.
	EnableDevLogin bool
}

type SessionController struct {
	config  SessionControllerConfig
	router  *gin.RouterGroup
	session *service.SessionService
}

func NewSessionController(config SessionControllerConfig, router *gin.RouterGroup, session *service.SessionService) *SessionController {
	return &SessionController{
		config:  config,
		router:  router,
		session: session,
	}
}

func (controller *SessionController) SetupRoutes() {
	sessionGroup := controller.router.Group("/session")
	sessionGroup.POST("/logout", controller.logoutHandler)

	if controller.config.EnableDevLogin {
		log.Warn().Msg("Dev login endpoint is enabled, do not use this in production")
		sessionGroup.POST("/login", controller.loginHandler)
	}
}

func (controller *SessionController) loginHandler(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  http.StatusBadRequest,
			"message": "Bad Request",
		})
		return
	}

	if err := controller.session.SetUser(c, req.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to create session cookie")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Internal Server Error",
		})
		return
	}

	log.Debug().Str("userId", req.UserID).Msg("Dev login")

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Logged in",
	})
}

func (controller *SessionController) logoutHandler(c *gin.Context) {
	if err := controller.session.ClearUser(c); err != nil {
		log.Error().Err(err).Msg("Failed to clear session cookie")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Logged out",
	})
}
