package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	mcpAdapter "github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve operator tools over MCP on stdio",
	Long: `Exposes the flow store and a test engine to MCP clients: list_blocks,
get_block, user_trace and inject_message. Messages produced by injected
turns are logged to stderr, since stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		pluginRoot, _ := cmd.Flags().GetString("plugins")

		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		logger := logging.New(slog.LevelInfo)

		// Injected turns land in the operator log, not a user channel.
		connector := ports.ConnectorFunc(func(ctx context.Context, userID string, msg domain.Message) error {
			logger.Info("outbound", "user_id", userID, "text", msg.Text, "buttons", msg.Buttons)
			return nil
		})

		bot, err := arbor.New(store, connector,
			arbor.WithLogger(logger),
			arbor.WithPluginRoot(pluginRoot),
		)
		if err != nil {
			return fmt.Errorf("assemble bot: %w", err)
		}

		return mcpAdapter.NewServer(store, bot).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("plugins", "plugins", "Directory module files resolve against")
}
