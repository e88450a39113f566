package testutils

import (
	"context"
	"sync"

	"github.com/srg/hrmon/internal/device"
)

// FakeAdapter is an in-memory device.Adapter. Peripherals added to it become
// visible through Peripherals once a scan has started, the way a real stack
// only reports what it has seen.
type FakeAdapter struct {
	mu sync.Mutex

	info        device.AdapterInfo
	sightings   []*FakePeripheral
	byID        map[string]*FakePeripheral
	scanning    bool
	hasScanned  bool
	subscribers []*eventSubscriber

	startScanErr   error
	stopScanErr    error
	peripheralsErr error
	onStartScan    func()

	startScanCalls int
	stopScanCalls  int
}

type eventSubscriber struct {
	mu     sync.RWMutex
	ch     chan device.Event
	done   chan struct{}
	closed bool
}

var _ device.Adapter = (*FakeAdapter)(nil)

// NewFakeAdapter creates an adapter with the given identifier
func NewFakeAdapter(id string) *FakeAdapter {
	return &FakeAdapter{
		info: device.AdapterInfo{ID: id, Name: "fake " + id},
		byID: make(map[string]*FakePeripheral),
	}
}

// AddPeripheral attaches p to the adapter and records one advertisement sighting.
// Adding the same peripheral again records another sighting.
func (a *FakeAdapter) AddPeripheral(p *FakePeripheral) *FakeAdapter {
	p.mu.Lock()
	p.adapter = a
	p.mu.Unlock()

	a.mu.Lock()
	a.sightings = append(a.sightings, p)
	a.byID[p.ID()] = p
	a.mu.Unlock()
	return a
}

// WithStartScanError makes StartScan fail
func (a *FakeAdapter) WithStartScanError(err error) *FakeAdapter {
	a.startScanErr = err
	return a
}

// WithStopScanError makes StopScan fail
func (a *FakeAdapter) WithStopScanError(err error) *FakeAdapter {
	a.stopScanErr = err
	return a
}

// WithPeripheralsError makes Peripherals fail
func (a *FakeAdapter) WithPeripheralsError(err error) *FakeAdapter {
	a.peripheralsErr = err
	return a
}

// OnStartScan registers a hook run after discovery has started
func (a *FakeAdapter) OnStartScan(fn func()) *FakeAdapter {
	a.onStartScan = fn
	return a
}

func (a *FakeAdapter) Info() device.AdapterInfo {
	return a.info
}

func (a *FakeAdapter) StartScan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.startScanCalls++
	if a.startScanErr != nil {
		err := a.startScanErr
		a.mu.Unlock()
		return err
	}
	if a.scanning {
		a.mu.Unlock()
		return device.ErrScanning
	}
	a.scanning = true
	a.hasScanned = true
	hook := a.onStartScan
	sightings := append([]*FakePeripheral(nil), a.sightings...)
	a.mu.Unlock()

	for _, p := range sightings {
		a.Emit(device.Event{Type: device.EventDiscovered, PeripheralID: p.ID()})
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (a *FakeAdapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopScanCalls++
	a.scanning = false
	return a.stopScanErr
}

func (a *FakeAdapter) Peripherals() ([]device.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.peripheralsErr != nil {
		return nil, a.peripheralsErr
	}
	if !a.hasScanned {
		return nil, nil
	}
	out := make([]device.Peripheral, 0, len(a.sightings))
	for _, p := range a.sightings {
		out = append(out, p)
	}
	return out, nil
}

func (a *FakeAdapter) Peripheral(id string) (device.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.byID[id]
	if !ok {
		return nil, &device.NotFoundError{Resource: "peripheral", UUIDs: []string{id}}
	}
	return p, nil
}

// FakePeripheral returns the concrete fake registered under id, or nil
func (a *FakeAdapter) FakePeripheral(id string) *FakePeripheral {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byID[id]
}

func (a *FakeAdapter) Events(ctx context.Context) (<-chan device.Event, error) {
	sub := &eventSubscriber{
		ch:   make(chan device.Event, 256),
		done: make(chan struct{}),
	}
	a.mu.Lock()
	a.subscribers = append(a.subscribers, sub)
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(sub.done)

		a.mu.Lock()
		for i, s := range a.subscribers {
			if s == sub {
				a.subscribers = append(a.subscribers[:i], a.subscribers[i+1:]...)
				break
			}
		}
		a.mu.Unlock()

		sub.mu.Lock()
		sub.closed = true
		close(sub.ch)
		sub.mu.Unlock()
	}()
	return sub.ch, nil
}

// Emit delivers ev to every open event stream
func (a *FakeAdapter) Emit(ev device.Event) {
	a.mu.Lock()
	subs := append([]*eventSubscriber(nil), a.subscribers...)
	a.mu.Unlock()

	for _, sub := range subs {
		sub.mu.RLock()
		if !sub.closed {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			}
		}
		sub.mu.RUnlock()
	}
}

// Subscribers returns the number of open event streams
func (a *FakeAdapter) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscribers)
}

func (a *FakeAdapter) IsScanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

func (a *FakeAdapter) StartScanCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startScanCalls
}

func (a *FakeAdapter) StopScanCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopScanCalls
}
