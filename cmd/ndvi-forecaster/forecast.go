package main

import (
	"fmt"
	"os"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/series"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// forecastCmd forecasts a single series from the command line
func forecastCmd(flags *rootFlags) *cobra.Command {
	var (
		values      []string
		regionToken string
		backendName string
		plotPath    string
	)

	cmd := &cobra.Command{
		Use:   "forecast [values...]",
		Short: "Forecast the next three values of a five year NDVI series",
		Long: `Validates five historical NDVI values and a region and prints the three year forecast as JSON.
Values may be given with --values or as positional arguments, oldest first.`,
		Example: `  ndvi-forecaster forecast --region south 0.5 0.52 0.54 0.56 0.58
  ndvi-forecaster forecast --values 0.5,0.52,0.54,0.56,0.58 --region north --backend learned`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			kind := cfg.DefaultBackend()
			if backendName != "" {
				kind, err = backend.ParseKind(backendName)
				if err != nil {
					return err
				}
			}

			raw := append(append([]string{}, values...), args...)
			h, r, err := series.Validate(raw, regionToken)
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg, newLogger(cfg, cmd))
			if err != nil {
				return err
			}

			f, err := engine.ForecastSeries(cmd.Context(), h, r, kind)
			if err != nil {
				return err
			}

			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(f); err != nil {
				return fmt.Errorf("failed to write forecast: %w", err)
			}

			if plotPath == "" {
				return nil
			}
			out, err := os.Create(plotPath)
			if err != nil {
				return fmt.Errorf("failed to create plot: %w", err)
			}
			defer out.Close()

			title := fmt.Sprintf("NDVI forecast, %s, %s", r, kind)
			return forecaster.PlotForecast(out, title, h, f)
		},
	}

	cmd.Flags().StringSliceVar(&values, "values", nil, "Five historical NDVI values, oldest first")
	cmd.Flags().StringVarP(&regionToken, "region", "r", "", "Region (north, south, east, west)")
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Forecast backend (statistical, learned), defaults to the config")
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write an HTML chart of the series and forecast to this path")
	cmd.MarkFlagRequired("region")

	return cmd
}
