package main

import (
	"fmt"
	"os"

	"github.com/cuemby/blockcat/pkg/catalog"
	"github.com/cuemby/blockcat/pkg/config"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var (
	cfgPath string
	cfg     *config.Config
	store   *catalog.Store
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "catalogctl",
	Short:   "Inspect and administer a block-level backup metadata catalog",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("catalogctl version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to catalogctl config file (required)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Force JSON log output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openStore loads the configured database and opens a Store, bypassing the
// head-revision check for the migrate subcommands themselves.
func openStore(cmd *cobra.Command, requireHead bool) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if jsonOut, _ := cmd.Flags().GetBool("log-json"); jsonOut {
		cfg.LogJSON = true
	}
	log.Init(cfg.LogConfig())

	store, err = catalog.New(cfg.DatabaseEngine)
	if err != nil {
		return err
	}
	if requireHead {
		return store.RequireHeadRevision()
	}
	return nil
}

func closeStore() {
	if store != nil {
		store.Close()
	}
}
