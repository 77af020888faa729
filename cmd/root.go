package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/config"
	"github.com/sells-group/coastline-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coastline-cli",
	Short: "Multi-decadal shoreline change analysis pipeline",
	Long:  "Derives annual shorelines from water-index raster composites, samples rates-of-change points along the baseline coast, and exports classified shoreline and statistics layers per study area.",
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

// initStore opens the run-tracking database, or returns nil when no
// store path is configured.
func initStore() (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.NewSQLite(cfg.Store.Path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
