// cmd/user.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/markb/ripple/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long:  `Commands for managing users in the authentication system.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user with the specified username and email. The password is
prompted interactively when --password is omitted.

Examples:
  # Create a new user, prompting for the password
  ripple user create --username alice --email alice@example.com

  # Non-interactive
  ripple user create --username alice --email alice@example.com --password secret123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		dsn, _ := cmd.Flags().GetString("db")

		if username == "" || email == "" {
			return fmt.Errorf("--username and --email are required")
		}

		if password == "" {
			var err error
			password, err = promptPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password must not be empty")
		}

		database, err := openDatabase(dsn)
		if err != nil {
			return err
		}
		defer database.Close()

		service := auth.NewService(database, "not-needed-for-create")
		user, err := service.CreateUser(username, email, password)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("Created user: %s (ID: %s)\n", user.Username, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long:  `Display all users in the authentication system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, _ := cmd.Flags().GetString("db")

		database, err := openDatabase(dsn)
		if err != nil {
			return err
		}
		defer database.Close()

		service := auth.NewService(database, "not-needed-for-list")
		users, err := service.ListUsers()
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()

		if len(users) == 0 {
			fmt.Println("No users found")
		}
		return nil
	},
}

// stdinReader is reused for non-terminal input to avoid losing buffered data
var stdinReader *bufio.Reader

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	// Try to read password securely (hides input)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println() // Add newline after hidden input
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	// Fallback for non-terminal (e.g., piped input)
	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	password, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)

	userCmd.PersistentFlags().String("db", "data.db", "SQLite file path or postgres:// DSN")

	userCreateCmd.Flags().String("username", "", "Username (required)")
	userCreateCmd.Flags().String("email", "", "User email (required)")
	userCreateCmd.Flags().String("password", "", "User password (prompted when omitted)")
}
