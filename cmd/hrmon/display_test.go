package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/srg/hrmon/internal/heartrate"
	"github.com/srg/hrmon/internal/telemetry"
	"github.com/srg/hrmon/session"
	"github.com/stretchr/testify/assert"
)

func TestRenderSnapshot(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	energy := uint16(42)

	t.Run("waiting", func(t *testing.T) {
		var buf bytes.Buffer
		renderSnapshot(&buf, telemetry.Snapshot{}, nil, now)

		assert.Contains(t, buf.String(), "Heart rate: waiting for data")
		assert.Contains(t, buf.String(), "  none")
		assert.NotContains(t, buf.String(), "Last error")
	})

	t.Run("live", func(t *testing.T) {
		snap := telemetry.Snapshot{
			HeartRate: 72,
			History: []telemetry.Sample{{
				PeripheralID:   "AA",
				HeartRate:      72,
				Contact:        heartrate.ContactDetected,
				EnergyExpended: &energy,
				RRIntervals:    []uint16{1024, 512},
				At:             now.Add(-3 * time.Second),
			}},
			Connected: []string{"AA"},
			LastError: "service \"180d\" not found",
		}
		sessions := map[string]session.State{"BB": session.StateSubscribing, "AA": session.StateActive}

		var buf bytes.Buffer
		renderSnapshot(&buf, snap, sessions, now)
		out := buf.String()

		assert.Contains(t, out, "Heart rate: 72 bpm")
		assert.Contains(t, out, "from AA, 3s ago: contact detected, energy 42 kJ, rr 1000ms 500ms")
		assert.Regexp(t, `(?s)AA  Active.*BB  Subscribing`, out, "sessions MUST be listed in identifier order")
		assert.Contains(t, out, "Connected: 1  Samples: 1")
		assert.Contains(t, out, `Last error: service "180d" not found`)
	})
}

func TestRenderLine(t *testing.T) {
	assert.Equal(t, "hr=0 connected=0 samples=0", renderLine(telemetry.Snapshot{}))
	assert.Equal(t, `hr=90 connected=2 samples=5 last_error="boom"`, renderLine(telemetry.Snapshot{
		HeartRate: 90,
		Connected: []string{"a", "b"},
		History:   make([]telemetry.Sample, 5),
		LastError: "boom",
	}))
}
