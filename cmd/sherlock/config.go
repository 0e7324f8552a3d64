package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize the engine configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("uploads.path: %s\n", cfg.Uploads.Path)
		fmt.Printf("graph.uri: %s\n", cfg.Graph.URI)
		fmt.Printf("vector.host: %s  vector.port: %d\n", cfg.Vector.Host, cfg.Vector.Port)
		fmt.Printf("linking.similarity_threshold: %.2f\n", cfg.Linking.SimilarityThreshold)
		fmt.Printf("patterns.outlier_z_threshold: %.2f\n", cfg.Patterns.OutlierZThreshold)
		fmt.Printf("compliance.max_delta_e_valid: %.2f  min_fidelity_valid: %.2f  min_rcf: %.2f\n",
			cfg.Compliance.MaxDeltaEValid, cfg.Compliance.MinFidelityValid, cfg.Compliance.MinRCF)
		fmt.Printf("checkpoint.directory: %s  interrupt_before_gate: %v\n", cfg.Checkpoint.Directory, cfg.Checkpoint.InterruptBeforeGate)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(config.Default(), args[0]); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
