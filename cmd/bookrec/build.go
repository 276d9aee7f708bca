package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/bookrec"
)

func init() {
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full pipeline and refresh the artifact cache",
	Long: `Build reads the raw CSV exports, constructs the rating matrix and the
neighbor index, and writes fresh artifacts to the cache. Existing
artifacts are replaced unconditionally.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.newLogger()
	if err != nil {
		return err
	}

	opts, err := cfg.engineOptions(logger)
	if err != nil {
		return err
	}

	// Rebuild directly instead of Open: Open would short-circuit on a
	// cache hit, and build exists to refresh the cache.
	eng := bookrec.NewEngine(opts...)
	if err := eng.Rebuild(cmd.Context()); err != nil {
		return err
	}

	stats, err := eng.Stats()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(stats)
}
