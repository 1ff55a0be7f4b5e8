package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.NewDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			log.Info().Str("driver", string(db.Driver)).Int("models", len(database.Models)).Msg("Schema is up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
			return nil
		},
	}
}
