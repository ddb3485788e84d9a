package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/syncer"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one acquisition cycle and print the daily summary",
	Long: `Run a single full acquisition cycle: collect live measurements from the
connected wearable, pull today's records from the aggregator bridge, persist
everything and print the recomputed daily summary.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cmd.SilenceUsage = true

	summary, err := rt.engine.SyncOnce(ctx)
	if errors.Is(err, syncer.ErrNoUser) {
		return fmt.Errorf("no user configured - set user_id in the config file")
	}
	if err != nil {
		// The computation survived; report it before surfacing the error.
		printSummary(summary)
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s health.DailySummary) {
	bold := color.New(color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s %s\n", bold("Daily summary for"), s.Day.Format("2006-01-02"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Steps\t%d\n", s.Steps)
	fmt.Fprintf(w, "Heart rate\t%d bpm\n", s.HeartRate)
	fmt.Fprintf(w, "Calories\t%d kcal\n", s.Calories)
	fmt.Fprintf(w, "Distance\t%.2f km\n", s.DistanceKm)
	fmt.Fprintf(w, "Sleep\t%.1f h\n", s.SleepHours)
	if s.WeightKg > 0 {
		fmt.Fprintf(w, "Weight\t%.1f kg\n", s.WeightKg)
	}
	oxygen := fmt.Sprintf("%d %%", s.OxygenPct)
	if s.OxygenEstimated {
		oxygen += " " + yellow("(estimated)")
	}
	fmt.Fprintf(w, "Blood oxygen\t%s\n", oxygen)
	w.Flush()
}
