package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ecosetu/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	Run:       runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}

	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("database.url is not set; nothing to migrate")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database.Config)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	switch direction {
	case "up":
		err = postgres.Migrate(ctx, db.DB.DB)
	case "down":
		err = postgres.MigrateDown(ctx, db.DB.DB)
	case "status":
		err = postgres.MigrationStatus(ctx, db.DB.DB)
	}
	if err != nil {
		slog.Error("Migration failed", "direction", direction, "error", err)
		os.Exit(1)
	}
	slog.Info("Migration complete", "direction", direction)
}
