package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

var configPath string

// rootCmd is the recall entrypoint. Running it without a subcommand starts
// the server.
var rootCmd = &cobra.Command{
	Use:           "recall",
	Short:         "Recall log store and RQL query engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recall - Log Query Engine\n")
		fmt.Fprintf(out, "  Version:    %s\n", version)
		fmt.Fprintf(out, "  Commit:     %s\n", commit)
		fmt.Fprintf(out, "  Built:      %s\n", buildTime)
		fmt.Fprintf(out, "  Go version: %s\n", goVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/recall/config.yml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
