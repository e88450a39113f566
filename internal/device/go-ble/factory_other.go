//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/device"
)

func newPlatformDevice(_ string) (ble.Device, error) {
	return nil, fmt.Errorf("bluetooth on %s: %w", runtime.GOOS, device.ErrUnsupported)
}
