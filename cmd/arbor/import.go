package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/pkg/adapters/loamflow"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/flowfile"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a flow into the database",
	Long: `Imports blocks and module manifests into the store. A directory is read
as a loam repository of markdown files; a file is read as a YAML flow
bundle. Existing blocks with the same ids are overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		dbPath, _ := cmd.Flags().GetString("db")

		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		ctx := cmd.Context()
		var blocks, modules int

		if info.IsDir() {
			loader, err := loamflow.Open(path)
			if err != nil {
				return err
			}
			flow, err := loader.Import(ctx, store)
			if err != nil {
				return err
			}
			blocks, modules = len(flow.Blocks), len(flow.Modules)
		} else {
			f, err := flowfile.Load(path)
			if err != nil {
				return err
			}
			if err := f.Import(ctx, store); err != nil {
				return err
			}
			blocks, modules = len(f.Blocks), len(f.Modules)
		}

		fmt.Printf("imported %d blocks and %d modules into %s\n", blocks, modules, dbPath)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored flow as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")

		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		return flowfile.Export(cmd.Context(), store, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
