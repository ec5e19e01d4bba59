package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brainz-lab/recall/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP over stdio by relaying to a running server",
	Long: `Speaks MCP JSON-RPC on stdin/stdout for editor and agent integrations.
Each request is forwarded to the /mcp/rpc endpoint of a running recall
server, which owns the database.`,
	RunE: runMCPCmd,
}

var mcpURL string

func init() {
	mcpCmd.Flags().StringVar(&mcpURL, "url", "", "server base URL (default http://<api-addr>)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCPCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	base := mcpURL
	if base == "" {
		base = "http://" + cfg.APIAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge := mcp.NewBridge(base+"/mcp/rpc", cfg.APIKey)
	return bridge.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
