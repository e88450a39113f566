package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/cod"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <hex>",
		Short: "Decode a Bluetooth Class of Device value",
		Long: `Split a 24-bit Class of Device value, given as hex, into its service
classes and major and minor device classes.`,
		Example: `  hrmon classify 0x240404
  hrmon classify 000918`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bits, err := parseClassOfDevice(args[0])
			if err != nil {
				return err
			}

			c := cod.Classify(bits)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Raw:      0x%06X\n", c.Raw)
			fmt.Fprintf(out, "Major:    %s\n", c.Major)
			fmt.Fprintf(out, "Minor:    %s\n", c.Minor)

			services := c.Services()
			names := make([]string, len(services))
			for i, sc := range services {
				names[i] = sc.String()
			}
			if len(names) == 0 {
				names = []string{"-"}
			}
			fmt.Fprintf(out, "Services: %s\n", strings.Join(names, ", "))
			fmt.Fprintf(out, "Health:   %t\n", c.IsHealthDevice())
			return nil
		},
	}
}

func parseClassOfDevice(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	bits, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid class of device %q: must be hex", s)
	}
	return uint32(bits), nil
}
