//go:build linux

package goble

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newPlatformDevice opens the HCI device named by adapterID ("hci0", "hci1", ...)
func newPlatformDevice(adapterID string) (ble.Device, error) {
	index := 0
	if adapterID != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(adapterID, "hci"))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid HCI adapter id %q", adapterID)
		}
		index = n
	}
	return linux.NewDevice(ble.OptDeviceID(index))
}
