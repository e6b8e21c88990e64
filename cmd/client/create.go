package client

import (
	"fmt"

	"authgate/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	createName           string
	createDescription    string
	createRedirectURIs   []string
	createAllowedOrigins []string
	createScopes         []string
	createCreatedBy      string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new OAuth client",
	Run: func(cmd *cobra.Command, args []string) {
		if createName == "" {
			log.Fatal().Msg("Client name is required")
		}

		registry, err := openRegistry()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}

		credentials, err := registry.CreateClient(service.CreateClientInput{
			Name:           createName,
			Description:    createDescription,
			RedirectURIs:   createRedirectURIs,
			AllowedOrigins: createAllowedOrigins,
			Scopes:         createScopes,
			CreatedBy:      createCreatedBy,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create client")
		}

		fmt.Printf("Created client %s\n\n", createName)
		fmt.Printf("Client ID: %s\n", credentials.ClientID)
		fmt.Printf("Client Secret: %s\n\n", credentials.ClientSecret)
		fmt.Println("Save the client secret now, it cannot be retrieved again.")
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Client name")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Client description")
	createCmd.Flags().StringSliceVar(&createRedirectURIs, "redirect-uri", nil, "Redirect URI, repeatable")
	createCmd.Flags().StringSliceVar(&createAllowedOrigins, "allowed-origin", nil, "Allowed origin, repeatable")
	createCmd.Flags().StringSliceVar(&createScopes, "scope", nil, "Granted scope, repeatable (defaults to openid, email, profile)")
	createCmd.Flags().StringVar(&createCreatedBy, "created-by", "", "Administrative user creating the client")
}
