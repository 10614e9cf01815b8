package main

import (
	"os"

	"github.com/spf13/cobra"

	"glint/internal/interfaces/cli/migrate"
	"glint/internal/interfaces/cli/serve"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "glint",
		Short: "Glint - screenshot bot with per-guild entitlements",
		Long:  `Glint renders web page screenshots on demand for chat guilds, gated by a trial and paid-authorization system.`,
	}

	rootCmd.AddCommand(
		serve.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
