package main

import (
	"github.com/spf13/cobra"
)

// modelsCmd reports which learned models load from the configured directory
func modelsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the learned model status of every region",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg, newLogger(cfg, cmd))
			if err != nil {
				return err
			}
			return engine.Registry().TablePrint(cmd.OutOrStdout())
		},
	}
}
