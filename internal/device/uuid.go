package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known GATT identifiers in normalized form
const (
	HeartRateServiceUUID     = "180d"
	HeartRateMeasurementUUID = "2a37"
)

// bluetoothBaseUUID is the Bluetooth SIG base 0000xxxx-0000-1000-8000-00805f9b34fb
var bluetoothBaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// NormalizeUUID converts a UUID string to the internal format (lowercase, no dashes).
// Strips a 0x prefix if present (e.g., "0x2A37" -> "2a37").
// Full 128-bit UUIDs in the Bluetooth SIG base format with a 16-bit value are
// shortened to that form (0000180d-0000-1000-8000-00805f9b34fb -> 180d).
// Returns "" for strings that are not valid 16, 32, or 128-bit UUIDs.
func NormalizeUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")

	switch len(s) {
	case 4, 8:
		if !isHex(s) {
			return ""
		}
		if len(s) == 8 && strings.HasPrefix(s, "0000") {
			return s[4:]
		}
		return s
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	if u[0] == 0 && u[1] == 0 && isSIGBased(u) {
		return fmt.Sprintf("%02x%02x", u[2], u[3])
	}
	return strings.ReplaceAll(u.String(), "-", "")
}

// NormalizeUUIDs normalizes a slice of UUID strings, dropping invalid entries
func NormalizeUUIDs(uuids []string) []string {
	if len(uuids) == 0 {
		return nil
	}
	out := make([]string, 0, len(uuids))
	for _, u := range uuids {
		if n := NormalizeUUID(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// EqualUUID compares two UUIDs in their normalized forms
func EqualUUID(a, b string) bool {
	na, nb := NormalizeUUID(a), NormalizeUUID(b)
	return na != "" && na == nb
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

func isSIGBased(u uuid.UUID) bool {
	for i := 4; i < len(u); i++ {
		if u[i] != bluetoothBaseUUID[i] {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
