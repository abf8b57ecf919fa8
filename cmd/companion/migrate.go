package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aiox-platform/companion/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations (memories, turn events)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			cfg.DB.MigrationsPath = path
		}
		if err := database.RunMigrations(cfg.DB); err != nil {
			return fmt.Errorf("migrating %s: %w", cfg.DB.Name, err)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("path", "", "directory holding the migration files (default DB_MIGRATIONS_PATH)")
}
