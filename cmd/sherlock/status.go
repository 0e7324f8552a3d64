package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sherlock-intel/engine/internal/activity"
	"github.com/sherlock-intel/engine/internal/investigation"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List known investigations and recent pipeline activity",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	checkpointDir := cfg.Checkpoint.Directory
	if checkpointDir == "" {
		checkpointDir = ".sherlock/investigations"
	}
	invStore := investigation.NewStore(checkpointDir)

	metas, err := invStore.ListAll()
	if err != nil {
		return fmt.Errorf("listing investigations: %w", err)
	}

	fmt.Println("Investigations:")
	if len(metas) == 0 {
		fmt.Println("  (none yet — run 'sherlock run <uploads-dir>')")
	}
	for _, m := range metas {
		fmt.Printf("  %s  %-24s  %-10s  v%d  updated %s\n", m.ID, m.Name, m.Status, m.Version, m.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\nRecent activity:")
	events := activity.Get().GetRecent(20, "")
	if len(events) == 0 {
		fmt.Println("  (no activity recorded in this process)")
	}
	for _, e := range events {
		fmt.Printf("  [%s] %s/%s investigation=%s\n", e.Timestamp.Format("15:04:05"), e.Agent, e.Step, e.InvestigationID)
	}
	return nil
}
