package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var topN int

func init() {
	topCmd.Flags().IntVarP(&topN, "limit", "n", 20, "number of titles to list")
	rootCmd.AddCommand(topCmd)
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most-rated titles",
	RunE:  runTop,
}

func runTop(cmd *cobra.Command, args []string) error {
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

	books, err := eng.TopRated(cmd.Context(), topN)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(books)
}
