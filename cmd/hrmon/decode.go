package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/heartrate"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a raw Heart Rate Measurement payload",
		Long: `Decode a Heart Rate Measurement (0x2A37) payload given as hex.

Bytes may be separated by spaces, colons or dashes and may carry a 0x prefix.`,
		Example: `  hrmon decode 06 48
  hrmon decode 0x1E4BE8030004`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHexPayload(strings.Join(args, ""))
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			m, err := heartrate.Decode(payload)
			if err != nil {
				return fmt.Errorf("failed to decode % X: %w", payload, err)
			}
			writeMeasurement(cmd, m)
			return nil
		},
	}
}

// parseHexPayload accepts hex with optional 0x prefix and byte separators
func parseHexPayload(s string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "0X", "").Replace(s)
	payload, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload %q: %w", s, err)
	}
	return payload, nil
}

func writeMeasurement(cmd *cobra.Command, m heartrate.Measurement) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Flags:         0x%02X\n", m.Flags)
	fmt.Fprintf(out, "Heart rate:    %d bpm\n", m.HeartRate)
	fmt.Fprintf(out, "Contact:       %s\n", m.Contact)
	if m.EnergyExpended != nil {
		fmt.Fprintf(out, "Energy:        %d kJ\n", *m.EnergyExpended)
	} else {
		fmt.Fprintln(out, "Energy:        -")
	}
	if len(m.RRIntervals) == 0 {
		fmt.Fprintln(out, "RR intervals:  -")
		return
	}
	rr := make([]string, len(m.RRIntervals))
	for i, d := range m.RRDurations() {
		rr[i] = fmt.Sprintf("%d (%s)", m.RRIntervals[i], d)
	}
	fmt.Fprintf(out, "RR intervals:  %s\n", strings.Join(rr, ", "))
}
