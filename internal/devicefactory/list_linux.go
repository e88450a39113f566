//go:build linux

package devicefactory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/srg/hrmon/internal/device"
)

// sysfsRoot is where the kernel exposes HCI devices
var sysfsRoot = "/sys/class/bluetooth"

func listAdapters() ([]device.AdapterInfo, error) {
	entries, err := os.ReadDir(sysfsRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bluetooth adapters: %w", err)
	}

	var infos []device.AdapterInfo
	for _, e := range entries {
		name := e.Name()
		// Skip per-connection entries such as hci0:64
		if !strings.HasPrefix(name, "hci") || strings.Contains(name, ":") {
			continue
		}
		infos = append(infos, device.AdapterInfo{ID: name, Name: readAddress(name)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func readAddress(id string) string {
	data, err := os.ReadFile(filepath.Join(sysfsRoot, id, "address"))
	if err != nil {
		return id
	}
	if addr := strings.TrimSpace(string(data)); addr != "" {
		return addr
	}
	return id
}
