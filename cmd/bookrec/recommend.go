package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var recommendK int

func init() {
	recommendCmd.Flags().IntVarP(&recommendK, "top-k", "k", 5, "number of recommendations")
	rootCmd.AddCommand(recommendCmd)
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <title>",
	Short: "Recommend titles similar to the given title",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
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

	result, err := eng.Recommend(cmd.Context(), args[0], recommendK)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
