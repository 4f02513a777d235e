package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "linker",
	Short: "Property record linkage engine",
	Long:  "Links cadastral registry extractions against commercial listing feeds: granularity gate, exact and fuzzy matching, grid fallback, dataset cleaning.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
