package main

import "github.com/spf13/cobra"

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage version labels",
}

var labelAddCmd = &cobra.Command{
	Use:   "add <uid> <name> <value>",
	Short: "Add or overwrite a label on a version",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()
		return store.AddLabel(args[0], args[1], args[2])
	},
}

var labelRmCmd = &cobra.Command{
	Use:   "rm <uid> <name>",
	Short: "Remove a label from a version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()
		return store.RmLabel(args[0], args[1])
	},
}

func init() {
	labelCmd.AddCommand(labelAddCmd, labelRmCmd)
}
