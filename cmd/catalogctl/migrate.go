package main

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalog"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the catalog schema",
}

var migrateInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the schema on a fresh, empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, false); err != nil {
			return err
		}
		defer closeStore()
		return store.Init()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending schema revisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, false); err != nil {
			return err
		}
		defer closeStore()
		return store.Migrate()
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied and head schema revisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, false); err != nil {
			return err
		}
		defer closeStore()

		current, err := catalog.CurrentRevision(store.DB())
		if err != nil {
			return err
		}
		fmt.Printf("applied: %d\nhead:    %d\n", current, catalog.HeadRevision())
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateInitCmd, migrateUpCmd, migrateStatusCmd)
}
