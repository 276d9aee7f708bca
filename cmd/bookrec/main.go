// Package main provides the bookrec CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// cfgFile holds the --config flag value shared by all subcommands.
var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bookrec",
	Short: "Item-based book recommendations from explicit ratings",
	Long: `bookrec builds a title-by-user rating matrix from raw CSV exports,
fits an exact cosine nearest-neighbor index over it, and serves
"readers who liked this also liked" recommendations.

Built artifacts are cached (locally or in S3-compatible object storage),
so subsequent runs skip the CSV ingestion entirely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default bookrec.yaml if present)")
	rootCmd.Version = Version
}
