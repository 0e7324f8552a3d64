// Command sherlock is the investigation intelligence engine's CLI,
// grounded on cmd/crisk/main.go's cobra root-command shape: persistent
// flags for config/verbosity, a PersistentPreRun that loads
// configuration once, and one subcommand file per verb.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/config"
	"github.com/sherlock-intel/engine/internal/logging"
)

var (
	// Version is set by build flags.
	Version = "dev"

	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sherlock",
	Short:   "Sherlock - investigation intelligence engine",
	Long:    `Sherlock ingests heterogeneous documents, builds a structured knowledge base, and produces ranked hypotheses, leads, and a compliance-gated narrative report.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := logging.INFO
		if verbose {
			logLevel = logging.DEBUG
		}
		if err := logging.Initialize(logging.Config{Level: logLevel, AddSource: verbose}); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if cmd.Name() == "config" || (cmd.HasParent() && cmd.Parent().Name() == "config") {
				cfg = config.Default()
				return nil
			}
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .sherlock/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(memoryCmd)
}
