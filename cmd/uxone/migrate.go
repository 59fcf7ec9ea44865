package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TIPA-VN/uxone-sub003/internal/database"
	"github.com/TIPA-VN/uxone-sub003/internal/logger"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		db, err := database.Open(ctx, cfg.Database, logger.Component(log, "database"))
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateStatus {
			current, err := database.CurrentVersion(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d\n", current, database.LatestVersion())
			return nil
		}

		applied, err := database.Migrate(ctx, db, logger.Component(log, "migrate"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema at version %d\n", applied, database.LatestVersion())
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print the current schema version and exit")
}
