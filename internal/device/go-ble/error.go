package goble

import (
	"fmt"
	"strings"

	"github.com/srg/hrmon/internal/device"
)

// errorPatterns maps lowercase fragments of go-ble and HCI error messages to
// connection sentinels. The first match wins.
var errorPatterns = []struct {
	fragment string
	sentinel error
}{
	// darwin: "central manager has invalid state: have=N want=5: is Bluetooth turned on?"
	{"is bluetooth turned on", device.ErrBluetoothOff},
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"already connected", device.ErrAlreadyConnected},
	{"not connected", device.ErrNotConnected},
	// linux HCI status 0x13 and 0x08 when the sensor walks away mid-request
	{"remote user terminated connection", device.ErrNotConnected},
	{"connection timeout", device.ErrNotConnected},
	{"disconnected", device.ErrNotConnected},
}

// NormalizeError wraps a go-ble error with the matching device sentinel so
// callers can use errors.Is. Unknown errors are returned unchanged.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.fragment) {
			return fmt.Errorf("%w: %v", p.sentinel, err)
		}
	}
	return err
}
