package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/hrmon/scanner"
)

var validFormats = []string{"table", "json"}

type scanOptions struct {
	duration   time.Duration
	format     string
	heartRate  bool
	noProgress bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Long: `Scan for Bluetooth Low Energy peripherals for one discovery window and list
what was seen: name, address, signal strength, advertised services and,
when the platform reports it, the decoded Class of Device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Scan window (defaults to scan_window from the configuration)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().BoolVar(&opts.heartRate, "heart-rate", false, "Only list peripherals advertising the Heart Rate service or a health Class of Device")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Do not print the scan countdown")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	if !isValidFormat(opts.format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", opts.format, validFormats)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	window := cfg.ScanWindow
	if opts.duration > 0 {
		window = opts.duration
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	m, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	adapter, err := m.Adapter()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var progress func(string)
	if opts.format == "table" && !opts.noProgress && isTerminal(cmd.OutOrStdout()) {
		p := NewScanProgress(cmd.ErrOrStderr(), "Scanning for BLE devices", window, scanner.PhaseProcessing)
		p.Start()
		defer p.Stop()
		progress = p.Callback()
	}

	devices, err := scanner.NewScanner(logger, progress).Scan(ctx, adapter, window)
	switch {
	case errors.Is(err, scanner.ErrNoPeripheralsFound):
		devices = nil
	case err != nil:
		return err
	}

	if opts.heartRate {
		devices = filterHeartRate(devices)
	}

	if opts.format == "json" {
		return writeDevicesJSON(cmd.OutOrStdout(), devices)
	}
	return writeDevicesTable(cmd.OutOrStdout(), devices)
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if format == f {
			return true
		}
	}
	return false
}

func filterHeartRate(devices []scanner.Descriptor) []scanner.Descriptor {
	var out []scanner.Descriptor
	for _, d := range devices {
		if d.AdvertisesHeartRate() || d.IsHealthDevice() {
			out = append(out, d)
		}
	}
	return out
}
