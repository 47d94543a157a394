package main

import (
	"context"
	"time"

	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database schema",
	Long: `Apply the embedded schema. Every statement is CREATE TABLE IF NOT EXISTS,
so running it on every deploy is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.OpenDB(appConfig.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return database.Migrate(ctx, db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
