package heartrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u16(v uint16) *uint16 { return &v }

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected Measurement
	}{
		{
			name:     "8-bit heart rate without optional fields",
			payload:  []byte{0x00, 0x4B},
			expected: Measurement{Flags: 0x00, HeartRate: 75, Contact: ContactNotSupported},
		},
		{
			name:     "16-bit heart rate",
			payload:  []byte{0x01, 0x4B, 0x00},
			expected: Measurement{Flags: 0x01, HeartRate: 75, Contact: ContactNotSupported},
		},
		{
			name:     "16-bit heart rate above 255",
			payload:  []byte{0x01, 0x2C, 0x01},
			expected: Measurement{Flags: 0x01, HeartRate: 300, Contact: ContactNotSupported},
		},
		{
			name:     "energy expended after 8-bit value",
			payload:  []byte{0x08, 0x4B, 0x0A, 0x00},
			expected: Measurement{Flags: 0x08, HeartRate: 75, Contact: ContactNotSupported, EnergyExpended: u16(10)},
		},
		{
			// 0x10 is the RR-present bit, so the trailing word is an RR interval.
			// This payload is sometimes quoted as "energy expended 10"; that
			// reading would need bit 3 (0x08) and is intentionally not followed.
			name:     "single RR interval",
			payload:  []byte{0x10, 0x4B, 0x0A, 0x00},
			expected: Measurement{Flags: 0x10, HeartRate: 75, Contact: ContactNotSupported, RRIntervals: []uint16{10}},
		},
		{
			name:    "contact detected with energy and two RR intervals",
			payload: []byte{0x1E, 0x50, 0x34, 0x12, 0x00, 0x04, 0x10, 0x04},
			expected: Measurement{
				Flags:          0x1E,
				HeartRate:      80,
				Contact:        ContactDetected,
				EnergyExpended: u16(0x1234),
				RRIntervals:    []uint16{1024, 1040},
			},
		},
		{
			name:     "contact not detected",
			payload:  []byte{0x04, 0x00},
			expected: Measurement{Flags: 0x04, HeartRate: 0, Contact: ContactNotDetected},
		},
		{
			name:     "contact bit without support bit is not supported",
			payload:  []byte{0x02, 0x3C},
			expected: Measurement{Flags: 0x02, HeartRate: 60, Contact: ContactNotSupported},
		},
		{
			name:     "RR flag with no intervals yields empty sequence",
			payload:  []byte{0x10, 0x3C},
			expected: Measurement{Flags: 0x10, HeartRate: 60, Contact: ContactNotSupported, RRIntervals: []uint16{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(tt.payload)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected error
	}{
		{name: "empty payload", payload: nil, expected: ErrPayloadTooShort},
		{name: "flags only", payload: []byte{0x00}, expected: ErrPayloadTooShort},
		{name: "16-bit value missing high byte", payload: []byte{0x01, 0x4B}, expected: ErrPayloadTruncated},
		{name: "energy expended missing", payload: []byte{0x08, 0x4B}, expected: ErrPayloadTruncated},
		{name: "energy expended half present", payload: []byte{0x08, 0x4B, 0x0A}, expected: ErrPayloadTruncated},
		{name: "odd RR byte", payload: []byte{0x10, 0x4B, 0x0A, 0x00, 0x01}, expected: ErrPayloadTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)

			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestMeasurementHelpers(t *testing.T) {
	m, err := Decode([]byte{0x18, 0x4B, 0x0A, 0x00, 0x00, 0x04, 0x00, 0x02})
	require.NoError(t, err)

	assert.True(t, m.HasEnergyExpended())
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, m.RRDurations())
	assert.Equal(t, "75 bpm, contact not supported, energy 10 kJ, rr [1s 500ms]", m.String())
	assert.Equal(t, "detected", ContactDetected.String())
}
