// cmd/token.go
package cmd

import (
	"fmt"
	"os"

	"github.com/markb/ripple/internal/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a user",
	Long: `Generates a signed access token for an existing user, for development
and scripting against the authenticated API.

Examples:
  ripple token --email alice@example.com
  RIPPLE_JWT_SECRET=... ripple token --username alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		username, _ := cmd.Flags().GetString("username")
		dsn, _ := cmd.Flags().GetString("db")

		if email == "" && username == "" {
			return fmt.Errorf("--email or --username is required")
		}

		jwtSecret := os.Getenv("RIPPLE_JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "super-secret-jwt-key-please-change-in-production"
			fmt.Fprintln(os.Stderr, "Warning: Using default JWT secret. Set RIPPLE_JWT_SECRET to match the server.")
		}

		database, err := openDatabase(dsn)
		if err != nil {
			return err
		}
		defer database.Close()

		service := auth.NewService(database, jwtSecret)

		var user *auth.User
		if email != "" {
			user, err = service.GetUserByEmail(email)
		} else {
			user, err = service.GetUserByUsername(username)
		}
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}

		token, err := service.GenerateAccessToken(user)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("db", "data.db", "SQLite file path or postgres:// DSN")
	tokenCmd.Flags().String("email", "", "Look the user up by email")
	tokenCmd.Flags().String("username", "", "Look the user up by username")
}
