package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/cod"
	"github.com/srg/hrmon/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultWindow is the default discovery window
const DefaultWindow = 10 * time.Second

// Scan errors
var (
	ErrNoAdaptersFound    = errors.New("no bluetooth adapters found")
	ErrNoPeripheralsFound = errors.New("no peripherals found")
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// Scan phases reported through ProgressCallback
const (
	PhaseScanning   = "Scanning"
	PhaseProcessing = "Processing results"
)

// Descriptor describes one peripheral seen during a scan window
type Descriptor struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"` // empty when the peripheral did not advertise one
	Address   string     `json:"address"`
	Connected bool       `json:"connected"`
	RSSI      int        `json:"rssi"`
	Services  []string   `json:"services,omitempty"`
	Class     *cod.Class `json:"-"` // nil when the stack does not expose Class of Device
}

// DisplayName returns the advertised name, falling back to the address
func (d Descriptor) DisplayName() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name
}

// AdvertisesHeartRate reports whether the heart rate service is in the advertisement
func (d Descriptor) AdvertisesHeartRate() bool {
	for _, svc := range d.Services {
		if device.EqualUUID(svc, device.HeartRateServiceUUID) {
			return true
		}
	}
	return false
}

// IsHealthDevice reports whether the Class of Device marks a wearable or health device
func (d Descriptor) IsHealthDevice() bool {
	return d.Class != nil && d.Class.IsHealthDevice()
}

// Scanner runs time-boxed discovery windows on an adapter
type Scanner struct {
	logger   *logrus.Logger
	progress ProgressCallback
}

// NewScanner creates a new scanner
func NewScanner(logger *logrus.Logger, progress ProgressCallback) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if progress == nil {
		progress = func(string) {} // No-op callback
	}
	return &Scanner{logger: logger, progress: progress}
}

// Scan runs one discovery window of the given duration on adapter and
// returns the peripherals known to it once the window closes.
//
// Discovery runs without filters. It is always stopped before Scan returns,
// whether the window elapsed, ctx was cancelled, or listing failed.
// Peripherals whose properties cannot be read are skipped.
func (s *Scanner) Scan(ctx context.Context, adapter device.Adapter, window time.Duration) (_ []Descriptor, err error) {
	if adapter == nil {
		return nil, ErrNoAdaptersFound
	}
	if window <= 0 {
		window = DefaultWindow
	}

	info := adapter.Info()
	s.logger.WithFields(logrus.Fields{
		"adapter":  info.ID,
		"duration": window,
	}).Info("Starting BLE scan...")
	s.progress(PhaseScanning)

	// The window includes the time StartScan needs to confirm discovery
	timer := time.NewTimer(window)
	defer timer.Stop()

	if err := adapter.StartScan(ctx); err != nil {
		// StartScan may have partially started discovery
		_ = adapter.StopScan()
		return nil, device.NewTransportError("scan", "", err)
	}
	defer func() {
		if stopErr := adapter.StopScan(); stopErr != nil {
			s.logger.WithField("error", stopErr).Warn("Failed to stop discovery")
			if err == nil {
				err = device.NewTransportError("scan", "", stopErr)
			}
		}
	}()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.progress(PhaseProcessing)

	peripherals, err := adapter.Peripherals()
	if err != nil {
		return nil, device.NewTransportError("scan", "", err)
	}

	results := orderedmap.New[string, Descriptor]()
	for _, p := range peripherals {
		desc, err := describe(p)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"peripheral_id": p.ID(),
				"error":         err,
			}).Debug("Skipping peripheral with unreadable properties")
			continue
		}
		// Later sightings of the same identifier update the first entry in place
		results.Set(desc.ID, desc)
	}

	if results.Len() == 0 {
		s.logger.Info("BLE scan completed without peripherals")
		return nil, ErrNoPeripheralsFound
	}

	out := make([]Descriptor, 0, results.Len())
	for pair := results.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}

	s.logger.WithField("device_count", len(out)).Info("BLE scan completed")
	return out, nil
}

func describe(p device.Peripheral) (Descriptor, error) {
	props, err := p.Properties()
	if err != nil {
		return Descriptor{}, err
	}
	if props == nil {
		return Descriptor{}, fmt.Errorf("peripheral %s has no properties", p.ID())
	}

	address := props.Address
	if address == "" {
		address = p.Address()
	}

	desc := Descriptor{
		ID:        p.ID(),
		Name:      props.LocalName,
		Address:   address,
		Connected: props.Connected,
		RSSI:      props.RSSI,
		Services:  device.NormalizeUUIDs(props.Services),
	}
	if props.ClassOfDevice != nil {
		class := cod.Classify(*props.ClassOfDevice)
		desc.Class = &class
	}
	return desc, nil
}
