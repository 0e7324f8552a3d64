package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/memory"
)

var (
	memoryQueryText       string
	memoryPatternType     string
	memoryMinConfidence   float64
	memoryLimit           int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Query the engine's long-term semantic memory (patterns and entity profiles)",
}

var memoryPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Query stored patterns by concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := openMemoryManager()
		patterns, err := mgr.QueryPatternsByConcept(memoryQueryText, memoryPatternType, memoryMinConfidence, memoryLimit)
		if err != nil {
			return fmt.Errorf("querying patterns: %w", err)
		}
		if len(patterns) == 0 {
			fmt.Println("(no matching patterns)")
			return nil
		}
		for _, p := range patterns {
			fmt.Printf("[%s] %s (confidence %.2f, investigation %s)\n", p.PatternType, p.Description, p.Confidence, p.InvestigationID)
		}
		return nil
	},
}

var memoryEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Query stored entity profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := openMemoryManager()
		profiles, err := mgr.QueryEntityProfiles(memoryQueryText, memoryLimit)
		if err != nil {
			return fmt.Errorf("querying entity profiles: %w", err)
		}
		if len(profiles) == 0 {
			fmt.Println("(no matching entity profiles)")
			return nil
		}
		for key, entries := range profiles {
			fmt.Printf("%s: %d recorded appearances\n", key, len(entries))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{memoryPatternsCmd, memoryEntitiesCmd} {
		c.Flags().StringVar(&memoryQueryText, "query", "", "free-text query")
		c.Flags().IntVar(&memoryLimit, "limit", 20, "maximum results")
	}
	memoryPatternsCmd.Flags().StringVar(&memoryPatternType, "type", "", "pattern type filter")
	memoryPatternsCmd.Flags().Float64Var(&memoryMinConfidence, "min-confidence", 0, "minimum confidence")

	memoryCmd.AddCommand(memoryPatternsCmd)
	memoryCmd.AddCommand(memoryEntitiesCmd)
}

func openMemoryManager() *memory.Manager {
	checkpointDir := cfg.Checkpoint.Directory
	if checkpointDir == "" {
		checkpointDir = ".sherlock/investigations"
	}
	return memory.NewManager(filepath.Join(checkpointDir, "memory"))
}
