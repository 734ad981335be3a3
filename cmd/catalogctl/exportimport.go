package main

import (
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [uid...]",
	Short: "Export versions (all versions if none named) as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		compact, _ := cmd.Flags().GetBool("compact")
		outPath, _ := cmd.Flags().GetString("output")

		out := os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return store.Export(f, args, compact)
		}
		return store.Export(out, args, compact)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a metadata_version-tagged JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd, true); err != nil {
			return err
		}
		defer closeStore()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return store.Import(f)
	},
}

func init() {
	exportCmd.Flags().Bool("compact", false, "Emit compact JSON with no indentation")
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
