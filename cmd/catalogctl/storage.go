package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage storage backends known to the catalog",
}

var storageCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a storage backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()
		s, err := store.CreateStorage(args[0])
		if err != nil {
			return err
		}
		fmt.Println(s.ID)
		return nil
	},
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered storage backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()
		storages, err := store.ListStorages()
		if err != nil {
			return err
		}
		for _, s := range storages {
			fmt.Printf("%d\t%s\n", s.ID, s.Name)
		}
		return nil
	},
}

func init() {
	storageCmd.AddCommand(storageCreateCmd, storageListCmd)
}
