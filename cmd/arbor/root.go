package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a scripted conversation engine for chat bots",
	Long: `Arbor runs chat bot flows: graphs of numbered blocks whose Lua scripts
read user input, keep per-user state and drive the conversation.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional local overrides; absence is not an error.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "arbor.db", "Path to the SQLite database")
}
