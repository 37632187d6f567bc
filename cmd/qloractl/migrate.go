package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/bootstrap"
	"github.com/qlora-pipeline/controlplane/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

func newMigrateCmd(c *cli) *cobra.Command {
	var (
		timeout time.Duration
		list    bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply history database migrations (uses DB_* environment variables)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				files, err := migrate.Files()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(c.out, f)
				}
				return nil
			}

			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), &cfg, timeout, slog.Default())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "maximum time for migrations to run")
	cmd.Flags().BoolVar(&list, "list", false, "print the embedded migration files and exit")
	return cmd
}

func runMigrations(ctx context.Context, cfg *config.AppConfig, timeout time.Duration, logger *slog.Logger) error {
	if timeout <= 0 {
		timeout = defaultMigrationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("db close failed", "error", cerr)
		}
	}()

	if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
		return err
	}
	logger.InfoContext(ctx, "migrations complete")
	return nil
}
