package client

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <client-id>",
	Short: "Rotate a client's secret",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		registry, err := openRegistry()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}

		secret, err := registry.RotateClientSecret(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to rotate client secret")
		}

		fmt.Printf("New client secret: %s\n\n", secret)
		fmt.Println("The old secret is no longer valid. Save the new one now, it cannot be retrieved again.")
	},
}
