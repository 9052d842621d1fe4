// cmd/init.go
package cmd

import (
	"fmt"
	"os"

	"github.com/markb/ripple/internal/db"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new ripple database",
	Long:  `Creates the database with the user, notification and message tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, _ := cmd.Flags().GetString("db")

		// A SQLite path must not already exist; Postgres DSNs are just opened
		if dsn != "" && !isPostgresDSN(dsn) {
			if _, err := os.Stat(dsn); err == nil {
				return fmt.Errorf("database already exists at %s", dsn)
			}
		}

		database, err := db.New(dsn)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer database.Close()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Printf("Initialized database at %s\n", dsn)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("db", "data.db", "SQLite file path or postgres:// DSN")
}
