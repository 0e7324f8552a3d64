package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/pipeline"
)

var resumeFeedback string

var resumeCmd = &cobra.Command{
	Use:   "resume <investigation-id>",
	Short: "Resume a checkpointed investigation, continuing past the compliance gate if interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeFeedback, "feedback", "", "human feedback recorded before resuming through the compliance gate")
}

func runResume(cmd *cobra.Command, args []string) error {
	invID := args[0]

	orch, _, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer orch.Ledger.Close()
	defer orch.GraphBackend.Close(context.Background())

	stateCfg := cfg.ToState()
	ctx := context.Background()

	s, err := orch.Resume(ctx, invID, stateCfg)
	if err != nil && !errors.Is(err, pipeline.ErrInterrupted) {
		return err
	}

	if errors.Is(err, pipeline.ErrInterrupted) && resumeFeedback != "" {
		s.HumanFeedback = resumeFeedback
		err = orch.Run(ctx, s)
	}

	printRunSummary(invID, s)
	if errors.Is(err, pipeline.ErrInterrupted) {
		fmt.Println("\nStill paused before the compliance gate. Pass --feedback to continue.")
		return nil
	}
	return err
}
