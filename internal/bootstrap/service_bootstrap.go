package bootstrap

import (
	"fmt"

	"authgate/internal/config"
	"authgate/internal/service"
	"authgate/internal/utils"
)

type Services struct {
	databaseService  *service.DatabaseService
	registryService  *service.RegistryService
	authorizeService *service.AuthorizeService
	signerService    *service.SignerService
	tokenService     *service.TokenService
	sessionService   *service.SessionService
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: app.config.DatabasePath,
	})

	if err := databaseService.Init(); err != nil {
		return Services{}, fmt.Errorf("failed to initialize database: %w", err)
	}

	services.databaseService = databaseService
	database := databaseService.GetDatabase()

	services.registryService = service.NewRegistryService(database)

	services.authorizeService = service.NewAuthorizeService(service.AuthorizeServiceConfig{
		CodeExpiry: app.config.CodeExpiry,
	}, database, services.registryService)

	privateKey := app.config.PrivateKey
	if privateKey == "" && app.config.PrivateKeyFile != "" {
		contents, err := utils.ReadFile(app.config.PrivateKeyFile)
		if err != nil {
			return Services{}, fmt.Errorf("failed to read private key file: %w", err)
		}
		privateKey = contents
	}

	signerService := service.NewSignerService(service.SignerServiceConfig{
		Algorithm:  app.config.SigningAlg,
		PrivateKey: privateKey,
		Secret:     utils.GetSecret(app.config.SigningSecret, app.config.SigningSecretFile),
		KeyID:      app.config.KeyID,
	})

	if err := signerService.Init(); err != nil {
		return Services{}, fmt.Errorf("failed to initialize token signer: %w", err)
	}

	services.signerService = signerService

	services.tokenService = service.NewTokenService(service.TokenServiceConfig{
		Issuer:            app.context.issuer,
		AccessTokenExpiry: app.config.AccessTokenExpiry,
	}, database, services.registryService, signerService)

	sessionService := service.NewSessionService(service.SessionServiceConfig{
		Secret:        app.config.SessionSecret,
		CookieName:    config.SessionCookieName,
		SessionExpiry: app.config.SessionExpiry,
		SecureCookie:  app.config.SecureCookie,
	})

	if err := sessionService.Init(); err != nil {
		return Services{}, fmt.Errorf("failed to initialize session service: %w", err)
	}

	services.sessionService = sessionService

	return services, nil
}
