package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(titlesCmd)
}

var titlesCmd = &cobra.Command{
	Use:   "titles",
	Short: "List every title the engine can recommend from",
	RunE:  runTitles,
}

func runTitles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.newLogger()
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	titles, err := eng.KnownTitles()
	if err != nil {
		return err
	}
	for _, t := range titles {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}
