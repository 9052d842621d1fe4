package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:     "ripple",
	Short:   "Ripple - real-time event delivery server",
	Long:    `A single-binary real-time server: per-user websocket rooms, a notification dispatch API, and durable notification/message storage behind them.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("ripple version {{.Version}}\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
