package bootstrap

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"authgate/internal/config"

	"github.com/rs/zerolog/log"
)

type BootstrapApp struct {
	config  config.Config
	context struct {
		issuer     string
		loginURL   string
		consentURL string
	}
	services Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

func (app *BootstrapApp) Setup() error {
	app.resolveURLs()

	log.Debug().Str("issuer", app.context.issuer).Str("loginURL", app.context.loginURL).Str("consentURL", app.context.consentURL).Msg("Resolved issuer URLs")

	services, err := app.initServices()

	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	router, err := app.setupRouter()

	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	log.Debug().Msg("Starting authorization code cleanup routine")
	go app.codeCleanup()

	address := fmt.Sprintf("%s:%d", app.config.Address, app.config.Port)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().Str("address", address).Str("issuer", app.context.issuer).Msg("Starting server")

	return server.ListenAndServe()
}

// resolveURLs derives the issuer and UI entry points from the app URL unless
// they are configured explicitly.
func (app *BootstrapApp) resolveURLs() {
	base := strings.TrimSuffix(app.config.AppURL, "/")

	app.context.issuer = strings.TrimSuffix(app.config.Issuer, "/")
	if app.context.issuer == "" {
		app.context.issuer = base
	}

	app.context.loginURL = app.config.LoginURL
	if app.context.loginURL == "" {
		app.context.loginURL = base + "/login"
	}

	app.context.consentURL = app.config.ConsentURL
	if app.context.consentURL == "" {
		app.context.consentURL = base + "/oauth/consent"
	}
}

// codeCleanup periodically drops redeemed and expired authorization codes.
func (app *BootstrapApp) codeCleanup() {
	for range time.Tick(10 * time.Minute) {
		deleted, err := app.services.authorizeService.DeleteExpiredCodes()
		if err != nil {
			log.Error().Err(err).Msg("Failed to clean up authorization codes")
			continue
		}
		if deleted > 0 {
			log.Debug().Int64("deleted", deleted).Msg("Cleaned up authorization codes")
		}
	}
}
