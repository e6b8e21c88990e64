package client

import (
	"authgate/internal/service"

	"github.com/spf13/cobra"
)

// Client registration is administrative only, there is no wire-level dynamic
// registration. These commands operate directly on the database.

var databasePath string

var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage registered OAuth clients",
}

func init() {
	ClientCmd.PersistentFlags().StringVar(&databasePath, "database-path", "authgate.db", "Path to the sqlite database")

	ClientCmd.AddCommand(createCmd)
	ClientCmd.AddCommand(rotateCmd)
	ClientCmd.AddCommand(deactivateCmd)
	ClientCmd.AddCommand(listCmd)
}

func openRegistry() (*service.RegistryService, error) {
	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: databasePath,
	})

	if err := databaseService.Init(); err != nil {
		return nil, err
	}

	return service.NewRegistryService(databaseService.GetDatabase()), nil
}
