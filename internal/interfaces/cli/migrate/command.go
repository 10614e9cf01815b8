package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"glint/internal/infrastructure/config"
	"glint/internal/infrastructure/database"
	"glint/internal/infrastructure/migration"
	"glint/internal/shared/logger"
)

var env string

// NewCommand builds the migrate command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  `Create or update the database tables to match the current models.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = database.Close() }()

	log := logger.NewLogger()
	log.Infow("running schema migration", "database", cfg.Database.Database)

	if err := migration.Run(database.Get()); err != nil {
		return err
	}

	log.Infow("schema migration complete")
	return nil
}
