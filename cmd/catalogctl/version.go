package main

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalog"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage backup versions",
}

var versionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		volume, _ := cmd.Flags().GetString("volume")
		snapshot, _ := cmd.Flags().GetString("snapshot")
		size, _ := cmd.Flags().GetInt64("size")
		blockSize, _ := cmd.Flags().GetInt64("block-size")
		storageName, _ := cmd.Flags().GetString("storage")

		storage, err := store.GetStorageByName(storageName)
		if err != nil {
			return err
		}

		v, err := store.CreateVersion(volume, snapshot, size, blockSize, storage.ID)
		if err != nil {
			return err
		}
		fmt.Println(v.UID)
		return nil
	},
}

var versionShowCmd = &cobra.Command{
	Use:   "show <uid>",
	Short: "Show a version's columns, labels, and block counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		v, err := store.GetVersion(args[0])
		if err != nil {
			return err
		}
		printVersion(v)
		return nil
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List versions, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		expr, _ := cmd.Flags().GetString("filter")
		var versions []catalog.Version
		var err error
		if expr != "" {
			versions, err = store.GetVersionsByExpr(expr)
		} else {
			volume, _ := cmd.Flags().GetString("volume")
			snapshot, _ := cmd.Flags().GetString("snapshot")
			versions, err = store.GetVersions(catalog.VersionFilter{Volume: volume, Snapshot: snapshot})
		}
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", v.UID, v.Volume, v.Snapshot, v.Status, v.Date.Format("2006-01-02T15:04:05Z"))
		}
		return nil
	},
}

var versionSetCmd = &cobra.Command{
	Use:   "set <uid>",
	Short: "Update a version's status and/or protected flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		var status *catalog.Status
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			parsed, err := catalog.ParseStatus(s)
			if err != nil {
				return err
			}
			status = &parsed
		}
		var protected *bool
		if cmd.Flags().Changed("protected") {
			p, _ := cmd.Flags().GetBool("protected")
			protected = &p
		}
		return store.SetVersion(args[0], status, protected)
	},
}

var versionRmCmd = &cobra.Command{
	Use:   "rm <uid>",
	Short: "Remove a version and tombstone its stored blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		n, err := store.RmVersion(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("tombstoned %d blocks\n", n)
		return nil
	},
}

func printVersion(v catalog.Version) {
	fmt.Printf("uid:          %s\n", v.UID)
	fmt.Printf("volume:       %s\n", v.Volume)
	fmt.Printf("snapshot:     %s\n", v.Snapshot)
	fmt.Printf("date:         %s\n", v.Date.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("status:       %s\n", v.Status)
	fmt.Printf("protected:    %v\n", v.Protected)
	fmt.Printf("storage:      %s\n", v.StorageName)
	fmt.Printf("size:         %d\n", v.Size)
	fmt.Printf("block_size:   %d\n", v.BlockSize)
	fmt.Printf("blocks:       %d (sparse %d)\n", v.BlocksCount, v.SparseBlocksCount)
	for name, value := range v.Labels {
		fmt.Printf("label:        %s=%s\n", name, value)
	}
}

func init() {
	versionCreateCmd.Flags().String("volume", "", "Volume name")
	versionCreateCmd.Flags().String("snapshot", "", "Snapshot name")
	versionCreateCmd.Flags().Int64("size", 0, "Logical size in bytes")
	versionCreateCmd.Flags().Int64("block-size", 0, "Block size in bytes")
	versionCreateCmd.Flags().String("storage", "", "Target storage name")
	versionCreateCmd.MarkFlagRequired("volume")
	versionCreateCmd.MarkFlagRequired("storage")

	versionListCmd.Flags().String("filter", "", "Filter expression (see the filter language)")
	versionListCmd.Flags().String("volume", "", "Restrict to this volume")
	versionListCmd.Flags().String("snapshot", "", "Restrict to this snapshot")

	versionSetCmd.Flags().String("status", "", "New status: incomplete, valid, invalid")
	versionSetCmd.Flags().Bool("protected", false, "New protected flag")

	versionCmd.AddCommand(versionCreateCmd, versionShowCmd, versionListCmd, versionSetCmd, versionRmCmd)
}
