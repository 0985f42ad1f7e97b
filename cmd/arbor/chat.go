package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/console"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long: `Runs a local chat loop against the flow stored in the database. Each
line is one turn for the "console" platform; markdown replies are styled
when stdout is a terminal. Exit with /quit or ctrl-d.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		user, _ := cmd.Flags().GetString("user")
		pluginRoot, _ := cmd.Flags().GetString("plugins")
		verbose, _ := cmd.Flags().GetBool("verbose")

		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		logger := logging.NewNop()
		if verbose {
			logger = logging.New(slog.LevelDebug)
		}

		bot, err := arbor.New(store, console.NewConnector(os.Stdout),
			arbor.WithLogger(logger),
			arbor.WithPluginRoot(pluginRoot),
		)
		if err != nil {
			return fmt.Errorf("assemble bot: %w", err)
		}

		return console.Chat(cmd.Context(), bot, user, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "local", "User id for the chat session")
	chatCmd.Flags().String("plugins", "plugins", "Directory module files resolve against")
	chatCmd.Flags().BoolP("verbose", "v", false, "Log engine activity to stderr")
}
