package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/health"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync loops and print each recomputed summary",
	Long: `Run both acquisition loops until interrupted: the realtime loop reads
live wearable vitals every cycle, the full loop additionally re-reads the
whole day from the aggregator. Each recomputed summary is printed as it
lands.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cmd.SilenceUsage = true

	rt.engine.Subscribe(func(s health.DailySummary) {
		fmt.Println()
		printSummary(s)
	})

	rt.engine.StartRealtime(ctx, rt.cfg.RealtimeInterval())
	rt.engine.StartFull(ctx, rt.cfg.FullInterval())

	fmt.Printf("Watching (realtime %s, full %s). Ctrl+C to stop.\n",
		rt.cfg.RealtimeInterval(), rt.cfg.FullInterval())

	<-sigCh
	fmt.Println("\nCtrl+C pressed, stopping...")
	cancel()
	return nil
}
