package main

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalog"
	"github.com/spf13/cobra"
)

func newLocker() (*catalog.Locker, error) {
	return catalog.NewLocker(store)
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage advisory locks",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire <name> <reason>",
	Short: "Acquire a named advisory lock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		locker, err := newLocker()
		if err != nil {
			return err
		}
		override, _ := cmd.Flags().GetBool("override")
		return locker.Acquire(args[0], args[1], override)
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release <name>",
	Short: "Release a named advisory lock held by this process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		locker, err := newLocker()
		if err != nil {
			return err
		}
		return locker.Release(args[0])
	},
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every held lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		locker, err := newLocker()
		if err != nil {
			return err
		}
		locks, err := locker.ListLocks()
		if err != nil {
			return err
		}
		for _, l := range locks {
			fmt.Printf("%s\t%s\t%s\t%s\n", l.LockName, l.Host, l.ProcessID, l.Reason)
		}
		return nil
	},
}

func init() {
	lockAcquireCmd.Flags().Bool("override", false, "Replace an existing conflicting lock")
	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd, lockListCmd)
}
