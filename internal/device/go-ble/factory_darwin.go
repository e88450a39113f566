//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// newPlatformDevice opens the CoreBluetooth central. macOS exposes a single
// radio, so adapterID is ignored.
func newPlatformDevice(_ string) (ble.Device, error) {
	return darwin.NewDevice()
}
