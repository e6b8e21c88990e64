package client

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered clients",
	Run: func(cmd *cobra.Command, args []string) {
		registry, err := openRegistry()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}

		clients, err := registry.ListClients()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list clients")
		}

		for _, client := range clients {
			status := "active"
			if !client.IsActive {
				status = "inactive"
			}
			fmt.Printf("%s  %s  (%s)\n", client.ClientID, client.Name, status)
			fmt.Printf("    redirect URIs: %s\n", strings.Join(client.RedirectURIList(), ", "))
			fmt.Printf("    scopes: %s\n", strings.Join(client.ScopeList(), " "))
		}
	},
}
