package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/scanner"
	"github.com/srg/hrmon/session"
)

type listenOptions struct {
	name       string
	noScan     bool
	scanWindow time.Duration
	interval   time.Duration
	duration   time.Duration
}

func newListenCmd() *cobra.Command {
	opts := &listenOptions{}
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to heart rate sensors and show live readings",
		Long: `Scan once, connect to every peripheral whose name contains --name and
show the latest heart rate until interrupted.

Peripherals connected by other means while listening are picked up as well;
those without the Heart Rate service are disconnected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListen(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "TICKR", "Connect to peripherals whose name contains this text (case-insensitive)")
	cmd.Flags().BoolVar(&opts.noScan, "no-scan", false, "Do not scan and auto-connect; only follow connections made elsewhere")
	cmd.Flags().DurationVarP(&opts.scanWindow, "scan-window", "w", 0, "Auto-connect scan window (defaults to scan_window from the configuration)")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 0, "Display refresh interval (defaults to poll_interval from the configuration)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func runListen(cmd *cobra.Command, opts *listenOptions) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	interval := cfg.PollInterval
	if opts.interval > 0 {
		interval = opts.interval
	}
	if opts.scanWindow > 0 {
		cfg.ScanWindow = opts.scanWindow
	}

	cmd.SilenceUsage = true

	m, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	if opts.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- m.Listen(ctx) }()

	out := cmd.OutOrStdout()
	var connected []string
	if !opts.noScan {
		connected, err = autoConnect(ctx, m, opts.name, out, logger)
		if err != nil {
			cancel()
			<-listenErr
		}
	}
	if err == nil {
		err = watch(ctx, m, out, interval, listenErr)
	}

	// Links opened here are closed here; external connections are left alone
	for _, id := range connected {
		if derr := m.Disconnect(id); derr != nil {
			logger.WithFields(logrus.Fields{
				"peripheral_id": id,
				"error":         derr,
			}).Warn("Failed to disconnect peripheral")
		}
	}

	// Reaching --duration is a normal exit
	if errors.Is(err, context.DeadlineExceeded) && opts.duration > 0 {
		return nil
	}
	return err
}

// autoConnect runs one scan window and connects the peripherals matching name.
// Individual connect failures are reported but do not stop the command.
func autoConnect(ctx context.Context, m *session.Manager, name string, out io.Writer, logger *logrus.Logger) ([]string, error) {
	fmt.Fprintf(out, "Scanning for peripherals matching %q...\n", name)

	needle := strings.ToLower(name)
	connected, err := m.AutoConnect(ctx, func(d scanner.Descriptor) bool {
		return strings.Contains(strings.ToLower(d.Name), needle)
	})

	switch {
	case errors.Is(err, scanner.ErrNoPeripheralsFound):
		fmt.Fprintln(out, "No peripherals found, waiting for connections...")
		return nil, nil
	case isFatal(err):
		return connected, err
	case err != nil:
		logger.WithField("error", err).Warn("Auto-connect finished with errors")
		fmt.Fprintf(out, "Auto-connect: %s\n", FormatUserError(err))
	}

	if len(connected) == 0 {
		fmt.Fprintf(out, "No peripherals matching %q, waiting for connections...\n", name)
	} else {
		fmt.Fprintf(out, "Connected: %s\n", strings.Join(connected, ", "))
	}
	return connected, nil
}

// isFatal reports errors that leave nothing to listen for
func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, device.ErrBluetoothOff) ||
		errors.Is(err, device.ErrUnsupported)
}

// watch redraws the snapshot on every tick until ctx ends or Listen returns.
// On a terminal the screen is redrawn; otherwise a line is printed whenever
// the snapshot changes.
func watch(ctx context.Context, m *session.Manager, out io.Writer, interval time.Duration, listenErr <-chan error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	interactive := isTerminal(out)
	var lastLine string

	draw := func() {
		snap := m.Snapshot()
		if interactive {
			clearScreen(out)
			renderSnapshot(out, snap, m.Sessions(), time.Now())
			return
		}
		if line := renderLine(snap); line != lastLine {
			fmt.Fprintln(out, line)
			lastLine = line
		}
	}

	for {
		select {
		case <-ctx.Done():
			err := <-listenErr
			draw()
			if err == nil {
				err = ctx.Err()
			}
			return err

		case err := <-listenErr:
			// Listen only returns early when the adapter event stream closes
			draw()
			if err != nil {
				return err
			}
			return errors.New("adapter event stream closed")

		case <-ticker.C:
			draw()
		}
	}
}
