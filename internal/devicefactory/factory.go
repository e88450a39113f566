// Package devicefactory discovers the local Bluetooth radios and wraps each
// one in a go-ble backed device.Adapter.
package devicefactory

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	goble "github.com/srg/hrmon/internal/device/go-ble"
)

// AdapterLister enumerates local radios. This is a variable so that it can be overridden in tests.
var AdapterLister = listAdapters

// Options configures the adapters created by Adapters
type Options struct {
	NotificationBuffer int
}

// Adapters returns one adapter per local radio. An empty result means no
// radio is present; callers report it as no adapters found.
func Adapters(logger *logrus.Logger, opts Options) ([]device.Adapter, error) {
	if logger == nil {
		logger = logrus.New()
	}

	infos, err := AdapterLister()
	if err != nil {
		return nil, err
	}

	adapters := make([]device.Adapter, 0, len(infos))
	for _, info := range infos {
		logger.WithFields(logrus.Fields{
			"adapter": info.ID,
			"name":    info.Name,
			"os":      runtime.GOOS,
		}).Debug("Found bluetooth adapter")
		adapters = append(adapters, goble.NewAdapter(info, logger, goble.AdapterOptions{
			NotificationBuffer: opts.NotificationBuffer,
		}))
	}
	return adapters, nil
}
