package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/ringchan"
)

// CharacteristicConfig represents a GATT characteristic configuration for faking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "read,notify"
}

// ServiceConfig represents a GATT service configuration for faking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralConfig represents the complete fake peripheral
type PeripheralConfig struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Address       string          `json:"address,omitempty"`
	RSSI          int             `json:"rssi,omitempty"`
	Advertised    []string        `json:"advertised,omitempty"`
	ClassOfDevice *uint32         `json:"class_of_device,omitempty"`
	Services      []ServiceConfig `json:"services,omitempty"`
}

// PeripheralBuilder builds FakePeripheral instances with full service/characteristic support
type PeripheralBuilder struct {
	cfg PeripheralConfig

	propertiesErr error
	connectErr    error
	discoverErr   error
	subscribeErr  error
}

// NewPeripheralBuilder creates a new peripheral builder for the given identifier
func NewPeripheralBuilder(id string) *PeripheralBuilder {
	return &PeripheralBuilder{cfg: PeripheralConfig{ID: id, Address: id, RSSI: -60}}
}

// FromJSON replaces the builder configuration with a JSON document
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	var cfg PeripheralConfig
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: invalid JSON: %v", err))
	}
	if cfg.Address == "" {
		cfg.Address = cfg.ID
	}
	b.cfg = cfg
	return b
}

func (b *PeripheralBuilder) WithName(name string) *PeripheralBuilder {
	b.cfg.Name = name
	return b
}

func (b *PeripheralBuilder) WithAddress(address string) *PeripheralBuilder {
	b.cfg.Address = address
	return b
}

func (b *PeripheralBuilder) WithRSSI(rssi int) *PeripheralBuilder {
	b.cfg.RSSI = rssi
	return b
}

// WithAdvertisedServices sets the service UUIDs present in the advertisement
func (b *PeripheralBuilder) WithAdvertisedServices(uuids ...string) *PeripheralBuilder {
	b.cfg.Advertised = append(b.cfg.Advertised, uuids...)
	return b
}

func (b *PeripheralBuilder) WithClassOfDevice(bits uint32) *PeripheralBuilder {
	b.cfg.ClassOfDevice = &bits
	return b
}

// WithService adds a GATT service to the peripheral
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.cfg.Services = append(b.cfg.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string) *PeripheralBuilder {
	if len(b.cfg.Services) == 0 {
		panic("PeripheralBuilder.WithCharacteristic: no service added yet")
	}
	last := &b.cfg.Services[len(b.cfg.Services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// WithHeartRateService adds a 180D service exposing a notifiable 2A37 measurement
func (b *PeripheralBuilder) WithHeartRateService() *PeripheralBuilder {
	return b.WithService(device.HeartRateServiceUUID).
		WithCharacteristic(device.HeartRateMeasurementUUID, "read,notify")
}

func (b *PeripheralBuilder) WithPropertiesError(err error) *PeripheralBuilder {
	b.propertiesErr = err
	return b
}

func (b *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	b.connectErr = err
	return b
}

func (b *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	b.discoverErr = err
	return b
}

func (b *PeripheralBuilder) WithSubscribeError(err error) *PeripheralBuilder {
	b.subscribeErr = err
	return b
}

// Build creates the fake peripheral. It is not attached to any adapter until
// FakeAdapter.AddPeripheral is called.
func (b *PeripheralBuilder) Build() *FakePeripheral {
	services := make([]device.Service, 0, len(b.cfg.Services))
	for _, sc := range b.cfg.Services {
		svc := device.Service{UUID: device.NormalizeUUID(sc.UUID)}
		for _, cc := range sc.Characteristics {
			svc.Characteristics = append(svc.Characteristics, device.Characteristic{
				UUID:       device.NormalizeUUID(cc.UUID),
				Properties: device.ParseProperties(cc.Properties),
			})
		}
		services = append(services, svc)
	}

	return &FakePeripheral{
		cfg:           b.cfg,
		services:      services,
		propertiesErr: b.propertiesErr,
		connectErr:    b.connectErr,
		discoverErr:   b.discoverErr,
		subscribeErr:  b.subscribeErr,
	}
}

// FakePeripheral is an in-memory device.Peripheral driven by the test
type FakePeripheral struct {
	mu sync.Mutex

	cfg      PeripheralConfig
	services []device.Service
	adapter  *FakeAdapter

	propertiesErr error
	connectErr    error
	discoverErr   error
	subscribeErr  error

	connected     bool
	generation    uint64
	subscriptions []*fakeSubscription
	onDiscover    func(*FakePeripheral)

	connectCalls    int
	disconnectCalls int
	subscribeCalls  int
}

type fakeSubscription struct {
	char   device.Characteristic
	stream *ringchan.RingChannel[device.Notification]
}

var _ device.Peripheral = (*FakePeripheral)(nil)

func (p *FakePeripheral) ID() string      { return p.cfg.ID }
func (p *FakePeripheral) Address() string { return p.cfg.Address }

func (p *FakePeripheral) Properties() (*device.PeripheralProperties, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.propertiesErr != nil {
		return nil, p.propertiesErr
	}
	return &device.PeripheralProperties{
		LocalName:     p.cfg.Name,
		Address:       p.cfg.Address,
		RSSI:          p.cfg.RSSI,
		Connectable:   true,
		Connected:     p.connected,
		Services:      append([]string(nil), p.cfg.Advertised...),
		ClassOfDevice: p.cfg.ClassOfDevice,
	}, nil
}

// Connect marks the peripheral connected and emits EventConnected on its adapter
func (p *FakePeripheral) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.connectCalls++
	if p.connectErr != nil {
		err := p.connectErr
		p.mu.Unlock()
		return err
	}
	if p.connected {
		p.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	p.connected = true
	p.generation++
	adapter := p.adapter
	p.mu.Unlock()

	if adapter != nil {
		adapter.Emit(device.Event{Type: device.EventConnected, PeripheralID: p.cfg.ID})
	}
	return nil
}

// Disconnect closes all notification streams and emits EventDisconnected
func (p *FakePeripheral) Disconnect() error {
	p.mu.Lock()
	p.disconnectCalls++
	p.mu.Unlock()
	p.drop()
	return nil
}

// DropLink simulates a link loss reported by the stack
func (p *FakePeripheral) DropLink() {
	p.drop()
}

// LinkUp simulates a connection established outside of Connect, for example
// by the operating system reconnecting a bonded sensor
func (p *FakePeripheral) LinkUp() {
	p.mu.Lock()
	p.connected = true
	p.generation++
	adapter := p.adapter
	p.mu.Unlock()
	if adapter != nil {
		adapter.Emit(device.Event{Type: device.EventConnected, PeripheralID: p.cfg.ID})
	}
}

func (p *FakePeripheral) drop() {
	p.mu.Lock()
	wasConnected := p.connected
	p.connected = false
	subs := p.subscriptions
	p.subscriptions = nil
	adapter := p.adapter
	p.mu.Unlock()

	for _, s := range subs {
		s.stream.Close()
	}
	if wasConnected && adapter != nil {
		adapter.Emit(device.Event{Type: device.EventDisconnected, PeripheralID: p.cfg.ID})
	}
}

func (p *FakePeripheral) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *FakePeripheral) Link() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return 0
	}
	return p.generation
}

// OnDiscover registers fn to run at the start of every DiscoverServices call
func (p *FakePeripheral) OnDiscover(fn func(*FakePeripheral)) *FakePeripheral {
	p.mu.Lock()
	p.onDiscover = fn
	p.mu.Unlock()
	return p
}

func (p *FakePeripheral) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	hook := p.onDiscover
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.discoverErr != nil {
		return nil, p.discoverErr
	}
	if !p.connected {
		return nil, device.ErrNotConnected
	}
	out := make([]device.Service, len(p.services))
	copy(out, p.services)
	return out, nil
}

func (p *FakePeripheral) Subscribe(ctx context.Context, char device.Characteristic) (<-chan device.Notification, error) {
	p.mu.Lock()
	p.subscribeCalls++
	if p.subscribeErr != nil {
		err := p.subscribeErr
		p.mu.Unlock()
		return nil, err
	}
	if !p.connected {
		p.mu.Unlock()
		return nil, device.ErrNotConnected
	}
	sub := &fakeSubscription{
		char:   char,
		stream: ringchan.New[device.Notification](256),
	}
	p.subscriptions = append(p.subscriptions, sub)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.stream.Close()
	}()
	return sub.stream.C(), nil
}

// Notify pushes a value on every active subscription. When uuid is not
// subscribed the value is still delivered to all streams, the way a stack
// multiplexing notifications on one channel would.
func (p *FakePeripheral) Notify(uuid string, value []byte) {
	p.mu.Lock()
	subs := append([]*fakeSubscription(nil), p.subscriptions...)
	p.mu.Unlock()

	n := device.Notification{
		PeripheralID: p.cfg.ID,
		UUID:         device.NormalizeUUID(uuid),
		Value:        append([]byte(nil), value...),
	}
	for _, s := range subs {
		s.stream.Send(n)
	}
}

// NotifyHeartRate pushes a raw 2A37 measurement payload
func (p *FakePeripheral) NotifyHeartRate(payload ...byte) {
	p.Notify(device.HeartRateMeasurementUUID, payload)
}

func (p *FakePeripheral) ConnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCalls
}

func (p *FakePeripheral) DisconnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnectCalls
}

func (p *FakePeripheral) SubscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribeCalls
}

// ActiveSubscriptions returns the number of open notification streams
func (p *FakePeripheral) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscriptions)
}

// SubscribedUUIDs returns the characteristic UUIDs of the open notification streams
func (p *FakePeripheral) SubscribedUUIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.subscriptions))
	for _, s := range p.subscriptions {
		out = append(out, s.char.UUID)
	}
	return out
}
