package cmd

import (
	"log"

	"github.com/quatton/qtube/pkg/db"
	"github.com/quatton/qtube/pkg/qapi/config"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies pending migrations to the accounts database configured by the DB_*
environment variables. Use --rollback to undo the last migration group.`,
	Run: runMigrate,
}

var migrateRollback bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Roll back the last migration group")
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}
	logger := qlog.ForEnvironment(cfg.Environment)

	database, err := db.New(ctx, cfg.DBConfig())
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	if migrateRollback {
		err = db.Rollback(ctx, database, logger)
	} else {
		err = db.Migrate(ctx, database, logger)
	}
	if err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}
