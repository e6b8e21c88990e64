package cmd

import (
	"strings"

	clientCmd "authgate/cmd/client"
	"authgate/internal/bootstrap"
	"authgate/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "authgate",
	Short: "A minimal OpenID-Connect-compatible authorization server.",
	Long:  `Authgate is the authorization server behind the account dashboard: it registers OAuth clients, issues authorization codes and exchanges them for signed access tokens.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Str("version", config.Version).Msg("Starting authgate")

		var cfg config.Config
		err := viper.Unmarshal(&cfg)
		HandleError(err, "Failed to parse config")

		validate := validator.New()
		err = validate.Struct(cfg)
		HandleError(err, "Invalid config")

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		HandleError(err, "Invalid log level")
		zerolog.SetGlobalLevel(level)

		app := bootstrap.NewBootstrapApp(cfg)
		HandleError(app.Setup(), "Failed to start app")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func HandleError(err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

func init() {
	flags := rootCmd.Flags()

	flags.Int("port", 3000, "Port to listen on")
	flags.String("address", "0.0.0.0", "Address to bind to")
	flags.String("app-url", "", "Public URL of the app (e.g. https://auth.example.com)")
	flags.String("issuer", "", "Issuer URL, defaults to the app URL")
	flags.String("login-url", "", "Login entry point, defaults to <app-url>/login")
	flags.String("consent-url", "", "Consent page, defaults to <app-url>/oauth/consent")
	flags.String("database-path", "authgate.db", "Path to the sqlite database")
	flags.String("log-level", "info", "Log level")
	flags.String("signing-alg", "RS256", "Token signing algorithm (RS256 or HS256)")
	flags.String("private-key", "", "PEM-encoded RSA private key (RS256)")
	flags.String("private-key-file", "", "Path to a PEM-encoded RSA private key (RS256)")
	flags.String("signing-secret", "", "Shared signing secret (HS256)")
	flags.String("signing-secret-file", "", "Path to a file containing the shared signing secret (HS256)")
	flags.String("key-id", "", "Key id for JWKS and token headers, derived from the public key when empty")
	flags.String("session-secret", "", "Secret for the session cookie shared with the dashboard")
	flags.Int("session-expiry", 86400, "Session cookie lifetime in seconds")
	flags.Bool("secure-cookie", false, "Set the secure flag on the session cookie")
	flags.Int("code-expiry", 600, "Authorization code lifetime in seconds")
	flags.Int("access-token-expiry", 3600, "Access token lifetime in seconds")
	flags.String("trusted-proxies", "", "Comma separated list of trusted proxies")
	flags.Int("rate-limit", 0, "Requests per second per client on the OAuth endpoints, 0 disables")
	flags.Int("rate-limit-burst", 0, "Burst size for the rate limiter")
	flags.Bool("dev-login", false, "Enable the unauthenticated dev login endpoint, never use in production")

	HandleError(viper.BindPFlags(flags), "Failed to bind flags")

	viper.SetEnvPrefix("AUTHGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(clientCmd.ClientCmd)
	rootCmd.AddCommand(versionCmd)
}
