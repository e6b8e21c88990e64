package client

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <client-id>",
	Short: "Deactivate a client without deleting it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		registry, err := openRegistry()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}

		if err := registry.DeactivateClient(args[0]); err != nil {
			log.Fatal().Err(err).Msg("Failed to deactivate client")
		}

		fmt.Printf("Deactivated client %s\n", args[0])
	},
}
