package bootstrap

import (
	"fmt"
	"strings"

	"authgate/internal/controller"
	"authgate/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if app.config.TrustedProxies != "" {
		err := engine.SetTrustedProxies(strings.Split(app.config.TrustedProxies, ","))
		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	contextMiddleware := middleware.NewContextMiddleware(app.services.sessionService)

	if err := contextMiddleware.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize context middleware: %w", err)
	}

	engine.Use(contextMiddleware.Middleware())

	zerologMiddleware := middleware.NewZerologMiddleware()

	if err := zerologMiddleware.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareConfig{
		RequestsPerSecond: app.config.RateLimit,
		Burst:             app.config.RateLimitBurst,
	})

	if err := rateLimitMiddleware.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize rate limit middleware: %w", err)
	}

	rootRouter := engine.Group("", rateLimitMiddleware.Middleware())

	oidcController := controller.NewOIDCController(controller.OIDCControllerConfig{
		AppURL:     app.config.AppURL,
		Issuer:     app.context.issuer,
		LoginURL:   app.context.loginURL,
		ConsentURL: app.context.consentURL,
	}, rootRouter, app.services.authorizeService, app.services.tokenService, app.services.signerService)

	oidcController.SetupRoutes()

	apiRouter := engine.Group("/api")

	healthController := controller.NewHealthController(apiRouter)
	healthController.SetupRoutes()

	sessionController := controller.NewSessionController(controller.SessionControllerConfig{
		EnableDevLogin: app.config.DevLogin,
	}, apiRouter, app.services.sessionService)
	sessionController.SetupRoutes()

	return engine, nil
}
