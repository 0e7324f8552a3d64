// Package pipeline implements the ten-stage investigation orchestrator
// (spec §4.1): sequential stage execution over a shared
// state.InvestigationState, checkpointed after every stage, with an
// optional human-in-the-loop pause before the compliance gate and
// memory consolidation on completion.
//
// Grounded on internal/risk/chain_orchestrator.go's ChainOrchestrator:
// the same sequential-agent-chain shape (a fixed ordered list run over
// one shared context struct, each stage/agent free to mutate it)
// generalized from the teacher's 8-agent risk chain to the spec's
// ten-stage document investigation chain, and on
// original_source/core/orchestrator.py for the interrupt-before-gate
// and checkpoint-by-thread-id semantics.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sherlock-intel/engine/internal/activity"
	"github.com/sherlock-intel/engine/internal/classification"
	"github.com/sherlock-intel/engine/internal/compliance"
	"github.com/sherlock-intel/engine/internal/cryptanalysis"
	"github.com/sherlock-intel/engine/internal/entities"
	"github.com/sherlock-intel/engine/internal/graph"
	"github.com/sherlock-intel/engine/internal/ingestion"
	"github.com/sherlock-intel/engine/internal/investigation"
	"github.com/sherlock-intel/engine/internal/ledger"
	"github.com/sherlock-intel/engine/internal/linking"
	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/memory"
	"github.com/sherlock-intel/engine/internal/patterns"
	"github.com/sherlock-intel/engine/internal/state"
	"github.com/sherlock-intel/engine/internal/synthesis"
	"github.com/sherlock-intel/engine/internal/timeline"
	"github.com/sherlock-intel/engine/internal/vectorstore"
)

// StepName enumerates the ten stage identifiers, in run order.
type StepName string

const (
	StepIngestion      StepName = "ingestion"
	StepClassification StepName = "classification"
	StepEntities       StepName = "entity_extraction"
	StepCryptanalysis  StepName = "cryptanalysis"
	StepLinking        StepName = "semantic_linking"
	StepTimeline       StepName = "timeline"
	StepPatterns       StepName = "pattern_recognition"
	StepGraph          StepName = "graph_construction"
	StepSynthesis      StepName = "synthesis"
	StepComplianceGate StepName = "compliance_gate"
)

// ErrInterrupted is returned by Run when the pipeline pauses before the
// compliance gate awaiting human feedback (spec §4.1 step "interrupt
// before gate").
var ErrInterrupted = fmt.Errorf("pipeline interrupted before compliance gate")

// Orchestrator wires every stage's external dependencies and runs them
// in sequence over one InvestigationState.
type Orchestrator struct {
	Ledger          *ledger.Ledger
	NER             entities.NERModel
	VectorStore     vectorstore.Store
	GraphBackend    graph.Backend
	Memory          *memory.Manager
	InvestigationStore *investigation.Store
	ReportsDir      string
	QuarantineDir   string
}

// Run executes every stage in order, starting after the last stage
// recorded as complete in s.CurrentStep, so a partially-completed
// investigation resumes without re-running completed stages. A stage
// is not cleared of earlier output before it runs: the timeline and
// pattern stages, for example, append to s.Timeline and s.Patterns. If
// cfg.InterruptBeforeGate is set and no HumanFeedback has been
// recorded yet, Run stops after synthesis and returns ErrInterrupted;
// call Run again after setting s.HumanFeedback to proceed through the
// compliance gate.
func (o *Orchestrator) Run(ctx context.Context, s *state.InvestigationState) error {
	cfg := s.Config
	stages := []struct {
		name StepName
		run  func(context.Context, *state.InvestigationState) error
	}{
		{StepIngestion, func(ctx context.Context, s *state.InvestigationState) error {
			return ingestion.Stage(ctx, s, o.Ledger, o.QuarantineDir)
		}},
		{StepClassification, classification.Stage},
		{StepEntities, func(ctx context.Context, s *state.InvestigationState) error {
			return entities.Stage(ctx, s, o.NER)
		}},
		{StepCryptanalysis, cryptanalysis.Stage},
		{StepLinking, func(ctx context.Context, s *state.InvestigationState) error {
			return linking.Stage(ctx, s, o.VectorStore)
		}},
		{StepTimeline, timeline.Stage},
		{StepPatterns, patterns.Stage},
		{StepGraph, func(ctx context.Context, s *state.InvestigationState) error {
			return graph.Stage(ctx, s, o.GraphBackend)
		}},
		{StepSynthesis, func(ctx context.Context, s *state.InvestigationState) error {
			return synthesis.Stage(ctx, s, o.ReportsDir)
		}},
		{StepComplianceGate, compliance.Stage},
	}

	startIdx := o.resumeIndex(s, stages)

	for i := startIdx; i < len(stages); i++ {
		stage := stages[i]

		if stage.name == StepComplianceGate && cfg.InterruptBeforeGate && s.HumanFeedback == "" {
			logging.Info("pipeline interrupted before compliance gate", "investigation_id", s.InvestigationID)
			o.checkpoint(s)
			return ErrInterrupted
		}

		activity.Get().Emit("pipeline", "start", s.InvestigationID, map[string]any{"stage": string(stage.name)})
		start := time.Now()

		if err := stage.run(ctx, s); err != nil {
			s.AppendError(fmt.Sprintf("%s: %v", stage.name, err))
			activity.Get().Emit("pipeline", "error", s.InvestigationID, map[string]any{"stage": string(stage.name), "error": err.Error()})
			o.checkpoint(s)
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}

		activity.Get().Emit("pipeline", "end", s.InvestigationID,
			map[string]any{"stage": string(stage.name), "duration_ms": time.Since(start).Milliseconds()})
		o.checkpoint(s)
	}

	if o.Memory != nil {
		if err := o.Memory.Consolidate(s.InvestigationID, s); err != nil {
			logging.Warn("memory consolidation failed", "error", err)
		}
	}

	logging.Info("pipeline run complete", "investigation_id", s.InvestigationID, "step", s.CurrentStep)
	return nil
}

// resumeIndex finds the first stage not yet reflected in s.CurrentStep,
// so Run can be called again after a checkpoint restore or an
// interrupt without redoing completed stages.
func (o *Orchestrator) resumeIndex(s *state.InvestigationState, stages []struct {
	name StepName
	run  func(context.Context, *state.InvestigationState) error
}) int {
	if s.CurrentStep == "" || s.CurrentStep == "initialization" {
		return 0
	}
	for i, stage := range stages {
		if s.CurrentStep == string(stage.name)+"_complete" {
			return i + 1
		}
	}
	return 0
}

func (o *Orchestrator) checkpoint(s *state.InvestigationState) {
	if o.InvestigationStore == nil {
		return
	}
	s.Touch(time.Now().UTC())
	if err := o.InvestigationStore.SaveState(s.InvestigationID, s.Version, s); err != nil {
		logging.Warn("checkpoint save failed", "error", err)
	}
}

// Resume reloads a checkpointed state by investigation id and calls
// Run again, picking up from the last completed stage (spec §4.1
// "resume by thread_id").
func (o *Orchestrator) Resume(ctx context.Context, investigationID string, cfg *state.Config) (*state.InvestigationState, error) {
	if o.InvestigationStore == nil {
		return nil, fmt.Errorf("resume requires an investigation store")
	}
	s := state.NewInvestigationState(investigationID, "", cfg)
	ok, err := o.InvestigationStore.LoadState(investigationID, s)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no checkpoint found for investigation %s", investigationID)
	}
	s.Config = cfg
	return s, o.Run(ctx, s)
}
