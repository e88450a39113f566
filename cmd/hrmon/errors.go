package main

import (
	"errors"
	"fmt"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/scanner"
	"github.com/srg/hrmon/session"
)

// FormatUserError turns an error into a message suitable for the terminal
func FormatUserError(err error) string {
	var (
		nf   *device.NotFoundError
		terr *device.TransportError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Enable it and try again"
	case errors.Is(err, scanner.ErrNoAdaptersFound):
		return "no Bluetooth adapters found on this machine"
	case errors.Is(err, session.ErrMultipleAdaptersRequireSelection):
		return "several Bluetooth adapters are present; choose one with --adapter"
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Sprintf("not supported on this platform: %v", err)
	case errors.As(err, &nf) && nf.Resource == "adapter":
		return fmt.Sprintf("adapter %q does not exist; run without --adapter to list the available ones", firstOrEmpty(nf.UUIDs))
	case errors.As(err, &terr):
		if terr.PeripheralID != "" {
			return fmt.Sprintf("%s failed on %s: %v", terr.Op, terr.PeripheralID, terr.Err)
		}
		return fmt.Sprintf("%s failed: %v", terr.Op, terr.Err)
	default:
		return err.Error()
	}
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
