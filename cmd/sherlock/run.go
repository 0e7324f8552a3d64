package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/entities"
	"github.com/sherlock-intel/engine/internal/graph"
	"github.com/sherlock-intel/engine/internal/investigation"
	"github.com/sherlock-intel/engine/internal/ledger"
	"github.com/sherlock-intel/engine/internal/memory"
	"github.com/sherlock-intel/engine/internal/pipeline"
	"github.com/sherlock-intel/engine/internal/state"
	"github.com/sherlock-intel/engine/internal/vectorstore"
)

var (
	runName string
)

var runCmd = &cobra.Command{
	Use:   "run <uploads-dir>",
	Short: "Run a new investigation over a directory of documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "human-readable investigation name")
}

func runRun(cmd *cobra.Command, args []string) error {
	uploadsPath := args[0]
	cfg.Uploads.Path = uploadsPath

	orch, invStore, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer orch.Ledger.Close()
	defer orch.GraphBackend.Close(context.Background())

	invID, err := invStore.Create("", runName)
	if err != nil {
		return fmt.Errorf("creating investigation: %w", err)
	}

	s := state.NewInvestigationState(invID, uploadsPath, cfg.ToState())

	ctx := context.Background()
	err = orch.Run(ctx, s)
	printRunSummary(invID, s)
	if errors.Is(err, pipeline.ErrInterrupted) {
		fmt.Println("\nPipeline paused before the compliance gate. Run 'sherlock resume " + invID + "' after review to continue.")
		return nil
	}
	return err
}

func buildOrchestrator() (*pipeline.Orchestrator, *investigation.Store, error) {
	checkpointDir := cfg.Checkpoint.Directory
	if checkpointDir == "" {
		checkpointDir = ".sherlock/investigations"
	}
	invStore := investigation.NewStore(checkpointDir)

	ledgerPath := filepath.Join(checkpointDir, "ledger.db")
	ldg, err := ledger.Open(ledgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	graphBackend := graph.NewBackend(context.Background(), cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
	vecStore := vectorstore.NewStore(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)

	memDir := filepath.Join(checkpointDir, "memory")
	mem := memory.NewManager(memDir)

	orch := &pipeline.Orchestrator{
		Ledger:             ldg,
		NER:                entities.RegexNER{},
		VectorStore:        vecStore,
		GraphBackend:       graphBackend,
		Memory:             mem,
		InvestigationStore: invStore,
		ReportsDir:         filepath.Join(checkpointDir, "reports"),
		QuarantineDir:      filepath.Join(checkpointDir, "quarantine"),
	}
	return orch, invStore, nil
}

func printRunSummary(invID string, s *state.InvestigationState) {
	fmt.Printf("Investigation: %s\n", invID)
	fmt.Printf("Step: %s\n", s.CurrentStep)
	fmt.Printf("Documents: %d  Entities: %d  Relationships: %d\n", len(s.Documents), len(s.Entities), len(s.Relationships))
	fmt.Printf("Hypotheses: %d  Leads: %d\n", len(s.Hypotheses), len(s.Leads))
	if s.ComplianceReport != nil {
		fmt.Printf("Compliance: %s (delta_e=%.3f fidelity=%.3f rcf=%.3f)\n",
			s.ComplianceReport.OverallStatus, s.ComplianceReport.DeltaE, s.ComplianceReport.Fidelity, s.ComplianceReport.RCF)
		for _, rec := range s.ComplianceReport.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}
