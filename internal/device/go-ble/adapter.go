package goble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/ringchan"
)

const (
	// DefaultNotificationBuffer is the default capacity of a notification stream
	DefaultNotificationBuffer = 64

	// DefaultEventBuffer is the capacity of each adapter event stream
	DefaultEventBuffer = 64

	// scanStartGrace is how long StartScan waits for an immediate scan failure
	scanStartGrace = 100 * time.Millisecond
)

// AdapterOptions configures a go-ble backed adapter
type AdapterOptions struct {
	NotificationBuffer int
}

// Adapter is a device.Adapter backed by one go-ble central.
// The central is opened lazily on first use.
type Adapter struct {
	info   device.AdapterInfo
	logger *logrus.Logger
	opts   AdapterOptions

	mu       sync.Mutex
	central  Central
	scanTask *groutine.Task

	peripherals *hashmap.Map[string, *Peripheral]

	subsMu      sync.Mutex
	subscribers []*ringchan.RingChannel[device.Event]
}

var _ device.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter for the radio described by info
func NewAdapter(info device.AdapterInfo, logger *logrus.Logger, opts AdapterOptions) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.NotificationBuffer <= 0 {
		opts.NotificationBuffer = DefaultNotificationBuffer
	}
	return &Adapter{
		info:        info,
		logger:      logger,
		opts:        opts,
		peripherals: hashmap.New[string, *Peripheral](),
	}
}

func (a *Adapter) Info() device.AdapterInfo {
	return a.info
}

// centralLocked returns the opened central; callers must hold a.mu
func (a *Adapter) centralLocked() (Central, error) {
	if a.central != nil {
		return a.central, nil
	}
	c, err := DeviceFactory(a.info.ID)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"adapter": a.info.ID,
			"error":   err,
		}).Error("Failed to open BLE adapter")
		return nil, err
	}
	a.central = c
	return c, nil
}

func (a *Adapter) centralDevice() (Central, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.centralLocked()
}

// StartScan runs unfiltered discovery with duplicates allowed, so RSSI and
// names keep updating, until StopScan is called or ctx is done.
func (a *Adapter) StartScan(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scanTask != nil {
		select {
		case <-a.scanTask.Done():
			a.scanTask = nil
		default:
			return device.ErrScanning
		}
	}

	central, err := a.centralLocked()
	if err != nil {
		return err
	}

	failed := make(chan error, 1)
	a.scanTask = groutine.Go(ctx, "ble-scan-"+a.info.ID, func(scanCtx context.Context) {
		err := central.Scan(scanCtx, true, a.handleAdvertisement)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			a.logger.WithFields(logrus.Fields{
				"adapter": a.info.ID,
				"error":   err,
			}).Warn("BLE scan ended with error")
			failed <- err
		}
	})

	select {
	case err := <-failed:
		a.scanTask = nil
		return NormalizeError(err)
	case <-time.After(scanStartGrace):
	}

	a.logger.WithField("adapter", a.info.ID).Debug("BLE discovery started")
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	task := a.scanTask
	a.scanTask = nil
	a.mu.Unlock()

	if task == nil {
		return nil
	}
	task.Stop()
	a.logger.WithField("adapter", a.info.ID).Debug("BLE discovery stopped")
	return nil
}

func (a *Adapter) handleAdvertisement(adv Advertisement) {
	addr := adv.Addr()
	if addr == nil {
		return
	}
	id := addr.String()

	p, loaded := a.peripherals.GetOrInsert(id, newPeripheral(a, addr))
	p.update(adv)
	if !loaded {
		a.logger.WithFields(logrus.Fields{
			"peripheral_id": id,
			"name":          adv.LocalName(),
			"rssi":          adv.RSSI(),
		}).Debug("Discovered peripheral")
		a.emit(device.Event{Type: device.EventDiscovered, PeripheralID: id})
	}
}

// Peripherals returns every peripheral seen so far, ordered by identifier
func (a *Adapter) Peripherals() ([]device.Peripheral, error) {
	var list []*Peripheral
	a.peripherals.Range(func(_ string, p *Peripheral) bool {
		list = append(list, p)
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	out := make([]device.Peripheral, len(list))
	for i, p := range list {
		out[i] = p
	}
	return out, nil
}

func (a *Adapter) Peripheral(id string) (device.Peripheral, error) {
	p, ok := a.peripherals.Get(id)
	if !ok {
		return nil, &device.NotFoundError{Resource: "peripheral", UUIDs: []string{id}}
	}
	return p, nil
}

// Events returns a stream of discovery and connection events. When the
// consumer falls behind, the oldest undelivered events are dropped.
func (a *Adapter) Events(ctx context.Context) (<-chan device.Event, error) {
	stream := ringchan.New[device.Event](DefaultEventBuffer)

	a.subsMu.Lock()
	a.subscribers = append(a.subscribers, stream)
	a.subsMu.Unlock()

	groutine.Go(ctx, "ble-events-"+a.info.ID, func(ctx context.Context) {
		<-ctx.Done()
		a.subsMu.Lock()
		for i, s := range a.subscribers {
			if s == stream {
				a.subscribers = append(a.subscribers[:i], a.subscribers[i+1:]...)
				break
			}
		}
		a.subsMu.Unlock()
		stream.Close()
	})
	return stream.C(), nil
}

func (a *Adapter) emit(ev device.Event) {
	a.subsMu.Lock()
	subs := append([]*ringchan.RingChannel[device.Event](nil), a.subscribers...)
	a.subsMu.Unlock()

	for _, s := range subs {
		before := s.Dropped()
		s.Send(ev)
		if s.Dropped() > before {
			a.logger.WithField("event", ev).Warn("Event stream full, dropped oldest event")
		}
	}
}
