package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/syncer"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline connectivity and the latest stored summary",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cmd.SilenceUsage = true

	code := rt.engine.ConnectivityStatus(ctx)
	fmt.Printf("Connectivity: %s\n", colorizeStatus(code))

	if dev, ok := rt.manager.ConnectedDevice(); ok {
		fmt.Printf("Device: %s (%s)\n", dev.Name, dev.Address)
	}

	if rt.cfg.UserID == "" {
		fmt.Println("No user configured")
		return nil
	}

	summary, ok, err := rt.store.LatestSummary(ctx, rt.cfg.UserID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No summaries stored yet")
		return nil
	}
	fmt.Println()
	printSummary(summary)
	return nil
}

func colorizeStatus(code syncer.ConnectivityCode) string {
	switch code {
	case syncer.Connected:
		return color.GreenString(string(code))
	case syncer.SyncStale:
		return color.YellowString(string(code))
	default:
		return color.RedString(string(code))
	}
}
