// cmd/serve.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/markb/ripple/internal/db"
	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ripple server",
	Long:  `Starts the HTTP server with the realtime websocket gateway, dispatch API and auth endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := resolveDSN(cmd)
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logFormat, _ := cmd.Flags().GetString("log-format")

		jwtSecret := os.Getenv("RIPPLE_JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "super-secret-jwt-key-please-change-in-production"
			fmt.Println("Warning: Using default JWT secret. Set RIPPLE_JWT_SECRET in production.")
		}

		logCfg := log.DefaultConfig()
		logCfg.Level = logLevel
		logCfg.Format = logFormat
		if err := log.Init(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		database, err := openDatabase(dsn)
		if err != nil {
			return err
		}
		defer database.Close()

		// Run migrations in case the schema is outdated
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		srv := server.New(database, jwtSecret)
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Starting ripple on %s (database: %s)\n", addr, database.Driver())
		fmt.Printf("  Websocket: ws://%s/realtime/v1/websocket\n", addr)
		fmt.Printf("  Dispatch:  http://%s/realtime/v1/notify\n", addr)
		fmt.Printf("  Auth API:  http://%s/auth/v1\n", addr)

		return srv.ListenAndServe(addr)
	},
}

// resolveDSN applies flag-over-env-over-default priority for the database.
func resolveDSN(cmd *cobra.Command) string {
	if dsn, _ := cmd.Flags().GetString("db"); cmd.Flags().Changed("db") {
		return dsn
	}
	if dsn := os.Getenv("RIPPLE_DB"); dsn != "" {
		return dsn
	}
	dsn, _ := cmd.Flags().GetString("db")
	return dsn
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// openDatabase opens an existing database, failing with a hint to run init
// when a SQLite file is missing.
func openDatabase(dsn string) (*db.DB, error) {
	if !isPostgresDSN(dsn) {
		if _, err := os.Stat(dsn); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s. Run 'ripple init' first", dsn)
		}
	}

	database, err := db.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("db", "data.db", "SQLite file path or postgres:// DSN (env: RIPPLE_DB)")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().String("log-format", "text", "Log format: text or json")
}
