package main

import (
	"fmt"
	"os"

	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd runs the storefront API when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "jeweluxe",
	Short: "Jeweluxe storefront API",
	Long: `Jeweluxe storefront API server and maintenance commands.

Commands:
  serve         - Run the HTTP API (default)
  migrate       - Apply the database schema
  create-admin  - Create or promote an admin account`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 0. --- Load Environment Variables (.env) ---
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.Env)
		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// appConfig is loaded once by the root command before any subcommand runs.
var appConfig config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
