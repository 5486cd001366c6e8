package main

import (
	"fmt"
	"log/slog"
	"os"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/internal/config"
	"github.com/aouyang1/go-ndvi-forecaster/internal/observability"
	"github.com/spf13/cobra"
)

var version = "dev"

// flags shared by every subcommand
type rootFlags struct {
	configFile string
	modelDir   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "ndvi-forecaster",
		Short: "Forecast the next three yearly NDVI values of a region",
		Long: `Forecasts the next three yearly NDVI values from the last five observations of a region.
Forecasts are produced by a closed form trend extrapolation or by a learned per region model.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Service config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flags.modelDir, "model-dir", "", "Directory holding the learned model files, overrides the config")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(forecastCmd(flags))
	rootCmd.AddCommand(modelsCmd(flags))

	return rootCmd
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if f.modelDir != "" {
		cfg.Models.Dir = f.modelDir
	}
	return cfg, nil
}

// newEngine loads the learned models named by the config and builds the forecast engine
func newEngine(cfg *config.Config, logger *slog.Logger) (*forecaster.Engine, error) {
	reg := forecaster.LoadRegistry(cfg.Models.Dir, cfg.ModelFiles(), logger)
	engine, err := forecaster.New(&forecaster.Options{
		StatisticalOptions: backend.NewDefaultStatisticalOptions(),
		Registry:           reg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

func newLogger(cfg *config.Config, cmd *cobra.Command) *slog.Logger {
	return observability.NewLogger(cfg.Log, cmd.ErrOrStderr())
}
