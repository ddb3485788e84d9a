package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/live"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync loops and stream summaries over websocket",
	Long: `Run the acquisition loops and serve results over HTTP:

  /ws       websocket stream of recomputed daily summaries
  /summary  latest summary snapshot
  /status   pipeline connectivity`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, shutting down...")
		cancel()
	}()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cmd.SilenceUsage = true

	server := live.NewServer(rt.engine.ConnectivityStatus, rt.logger)
	rt.engine.Subscribe(server.Publish)

	rt.engine.StartRealtime(ctx, rt.cfg.RealtimeInterval())
	rt.engine.StartFull(ctx, rt.cfg.FullInterval())

	fmt.Printf("Serving on %s (realtime %s, full %s). Ctrl+C to stop.\n",
		rt.cfg.Live.ListenAddr, rt.cfg.RealtimeInterval(), rt.cfg.FullInterval())

	if err := server.Run(ctx, rt.cfg.Live.ListenAddr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
