package main

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalog"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run a garbage-collection sweep over tombstoned blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		graceSeconds, _ := cmd.Flags().GetInt64("grace-period")
		if graceSeconds == 0 {
			graceSeconds = int64(cfg.GracePeriodSeconds)
		}

		locker, err := newLocker()
		if err != nil {
			return err
		}

		return locker.WithLock("gc", "catalogctl gc", false, func() error {
			return store.GetDeleteCandidates(graceSeconds, func(hits map[string][]catalog.BlockUID) error {
				for storageName, uids := range hits {
					fmt.Printf("%s\t%d blocks\n", storageName, len(uids))
					for _, uid := range uids {
						fmt.Printf("  %s\n", uid.Key())
					}
				}
				return nil
			})
		})
	},
}

func init() {
	gcCmd.Flags().Int64("grace-period", 0, "Tombstone grace period in seconds (default: configured value)")
}
