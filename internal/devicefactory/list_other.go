//go:build !linux

package devicefactory

import "github.com/srg/hrmon/internal/device"

// listAdapters reports the single system radio; CoreBluetooth does not expose others
func listAdapters() ([]device.AdapterInfo, error) {
	return []device.AdapterInfo{{ID: "default", Name: "system bluetooth"}}, nil
}
