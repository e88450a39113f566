package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/srg/hrmon/internal/bledb"
	"github.com/srg/hrmon/internal/telemetry"
	"github.com/srg/hrmon/scanner"
	"github.com/srg/hrmon/session"
	"golang.org/x/term"
)

var (
	heartColor   = color.New(color.FgRed, color.Bold)
	activeColor  = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	headingColor = color.New(color.Bold)
)

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit-3] + "..."
	}
	return s
}

func writeDevicesTable(w io.Writer, devices []scanner.Descriptor) error {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tSERVICES\tCLASS")
	fmt.Fprintln(tw, strings.Repeat("-", 80))

	for _, d := range devices {
		name := truncate(d.DisplayName(), 20)
		if d.AdvertisesHeartRate() {
			name = activeColor.Sprint(name)
		}

		class := "-"
		if d.Class != nil {
			class = fmt.Sprintf("%s/%s", d.Class.Major, d.Class.Minor)
		}

		services := make([]string, len(d.Services))
		for i, uuid := range d.Services {
			services[i] = bledb.ServiceLabel(uuid)
		}

		fmt.Fprintf(tw, "%s\t%s\t%d dBm\t%s\t%s\n",
			name, d.Address, d.RSSI, truncate(strings.Join(services, ","), 30), class)
	}
	return tw.Flush()
}

type classView struct {
	Raw      string   `json:"raw"`
	Major    string   `json:"major"`
	Minor    string   `json:"minor"`
	Services []string `json:"services,omitempty"`
}

type deviceView struct {
	scanner.Descriptor
	Class *classView `json:"class,omitempty"`
}

func writeDevicesJSON(w io.Writer, devices []scanner.Descriptor) error {
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		v := deviceView{Descriptor: d}
		if d.Class != nil {
			v.Class = &classView{
				Raw:   fmt.Sprintf("0x%06X", d.Class.Raw),
				Major: d.Class.Major.String(),
				Minor: d.Class.Minor.String(),
			}
			for _, sc := range d.Class.Services() {
				v.Class.Services = append(v.Class.Services, sc.String())
			}
		}
		views = append(views, v)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(views)
}

// renderSnapshot draws the live view of one telemetry snapshot
func renderSnapshot(w io.Writer, snap telemetry.Snapshot, sessions map[string]session.State, now time.Time) {
	if snap.HeartRate == 0 {
		fmt.Fprintf(w, "Heart rate: %s\n", warnColor.Sprint("waiting for data"))
	} else {
		fmt.Fprintf(w, "Heart rate: %s\n", heartColor.Sprintf("%d bpm", snap.HeartRate))
	}

	if n := len(snap.History); n > 0 {
		last := snap.History[n-1]
		details := []string{"contact " + last.Contact.String()}
		if last.EnergyExpended != nil {
			details = append(details, fmt.Sprintf("energy %d kJ", *last.EnergyExpended))
		}
		if len(last.RRIntervals) > 0 {
			rr := make([]string, len(last.RRIntervals))
			for i, v := range last.RRIntervals {
				rr[i] = fmt.Sprintf("%dms", int64(v)*1000/1024)
			}
			details = append(details, "rr "+strings.Join(rr, " "))
		}
		fmt.Fprintf(w, "  from %s, %s ago: %s\n",
			last.PeripheralID, now.Sub(last.At).Truncate(time.Second), strings.Join(details, ", "))
	}

	fmt.Fprintln(w)
	headingColor.Fprintln(w, "Sessions")
	if len(sessions) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		ids := make([]string, 0, len(sessions))
		for id := range sessions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			state := sessions[id]
			label := state.String()
			if state == session.StateActive {
				label = activeColor.Sprint(label)
			}
			fmt.Fprintf(w, "  %s  %s\n", id, label)
		}
	}
	fmt.Fprintf(w, "Connected: %d  Samples: %d\n", len(snap.Connected), len(snap.History))

	if snap.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", errorColor.Sprint(snap.LastError))
	}
}

// renderLine formats a snapshot as a single log-friendly line
func renderLine(snap telemetry.Snapshot) string {
	line := fmt.Sprintf("hr=%d connected=%d samples=%d", snap.HeartRate, len(snap.Connected), len(snap.History))
	if snap.LastError != "" {
		line += fmt.Sprintf(" last_error=%q", snap.LastError)
	}
	return line
}
