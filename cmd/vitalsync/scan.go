package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/classify"
	"github.com/vitalsync/vitalsync/internal/radio"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for health wearables",
	Long: `Scan for nearby wearable devices and display their names, addresses,
signal strength and guessed vendor.

Only devices that plausibly carry health sensors are shown; pass --all to
see every advertiser.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 15*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show every advertiser, not just plausible wearables")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	manager := radio.NewManager(logger)
	if err := manager.EnsurePermissions(); err != nil {
		return err
	}

	opts := &radio.ScanOptions{
		Duration:  scanDuration,
		AllFilter: scanAll,
		AllowList: scanAllowList,
		BlockList: scanBlockList,
	}

	fmt.Printf("Scanning for wearables (%s)...\n", scanDuration)

	var onFound func(radio.DeviceInfo)
	if scanFormat == "table" {
		onFound = func(dev radio.DeviceInfo) {
			name := dev.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("  found %s [%s]\n", name, dev.Address)
		}
	}

	devices, err := manager.Scan(ctx, opts, onFound)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if scanFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}
	return displayDeviceTable(devices)
}

func displayDeviceTable(devices []radio.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tBRAND\tSERVICES")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, dev := range devices {
		name := dev.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		brand := string(dev.Brand)
		if dev.Brand != classify.BrandUnknown {
			brand = green(brand)
		}

		services := strings.Join(dev.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\n",
			name, dev.Address, dev.RSSI, brand, services)
	}
	return w.Flush()
}
