package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/ringchan"
)

// Peripheral is a device.Peripheral backed by go-ble. Advertisement state is
// refreshed on every sighting; GATT state lives only while connected.
type Peripheral struct {
	adapter *Adapter
	addr    ble.Addr
	id      string

	mu          sync.RWMutex
	name        string
	rssi        int
	connectable bool
	services    []string

	link          Link
	generation    uint64
	profile       *ble.Profile
	monitor       *groutine.Task
	subscriptions []*subscription
}

type subscription struct {
	char     *ble.Characteristic
	indicate bool
	stream   *ringchan.RingChannel[device.Notification]
	task     *groutine.Task
}

var _ device.Peripheral = (*Peripheral)(nil)

func newPeripheral(a *Adapter, addr ble.Addr) *Peripheral {
	return &Peripheral{adapter: a, addr: addr, id: addr.String()}
}

func (p *Peripheral) logger() *logrus.Entry {
	return p.adapter.logger.WithField("peripheral_id", p.id)
}

func (p *Peripheral) update(adv Advertisement) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name := adv.LocalName(); name != "" {
		p.name = name
	}
	p.rssi = adv.RSSI()
	p.connectable = adv.Connectable()

	// Merge advertised services; advertisements may carry different subsets
	for _, svc := range adv.Services() {
		normalized := device.NormalizeUUID(svc.String())
		if normalized == "" {
			continue
		}
		known := false
		for _, s := range p.services {
			if s == normalized {
				known = true
				break
			}
		}
		if !known {
			p.services = append(p.services, normalized)
		}
	}
}

func (p *Peripheral) ID() string {
	return p.id
}

func (p *Peripheral) Address() string {
	return p.addr.String()
}

// Properties returns the cached advertisement state. Class of Device is
// never reported: LE advertisements do not carry it.
func (p *Peripheral) Properties() (*device.PeripheralProperties, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &device.PeripheralProperties{
		LocalName:   p.name,
		Address:     p.addr.String(),
		RSSI:        p.rssi,
		Connectable: p.connectable,
		Connected:   p.link != nil,
		Services:    append([]string(nil), p.services...),
	}, nil
}

func (p *Peripheral) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.link != nil
}

func (p *Peripheral) Link() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.link == nil {
		return 0
	}
	return p.generation
}

// Connect dials the peripheral and emits EventConnected on success
func (p *Peripheral) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.link != nil {
		p.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	p.mu.Unlock()

	central, err := p.adapter.centralDevice()
	if err != nil {
		return err
	}

	p.logger().WithField("address", p.addr.String()).Info("Connecting to BLE device...")
	link, err := central.Dial(ctx, p.addr)
	if err != nil {
		p.logger().WithField("error", err).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.addr.String(), NormalizeError(err))
	}

	p.mu.Lock()
	if p.link != nil {
		// Lost a race with a concurrent Connect
		p.mu.Unlock()
		_ = link.CancelConnection()
		return device.ErrAlreadyConnected
	}
	p.link = link
	p.generation++
	if notifier, ok := link.(disconnectNotifier); ok {
		p.monitor = groutine.Go(context.Background(), "ble-link-monitor-"+p.id, func(monitorCtx context.Context) {
			select {
			case <-notifier.Disconnected():
				p.logger().Warn("BLE stack reported disconnection")
				p.teardown(link, false)
			case <-monitorCtx.Done():
			}
		})
	} else {
		p.logger().Debug("Client does not support Disconnected() channel")
	}
	p.mu.Unlock()

	p.logger().Info("BLE device connected")
	p.adapter.emit(device.Event{Type: device.EventConnected, PeripheralID: p.id})
	return nil
}

// Disconnect unsubscribes every stream and drops the link. It is a no-op
// when the peripheral is not connected.
func (p *Peripheral) Disconnect() error {
	p.mu.RLock()
	link := p.link
	p.mu.RUnlock()
	if link == nil {
		p.logger().Debug("Disconnect called but already disconnected")
		return nil
	}
	p.logger().Info("Disconnecting BLE device...")
	return p.teardown(link, true)
}

// teardown releases the state of link and emits EventDisconnected once.
// When cancelLink is set the remote side is unsubscribed and the link dropped.
func (p *Peripheral) teardown(link Link, cancelLink bool) error {
	p.mu.Lock()
	if p.link != link {
		p.mu.Unlock()
		return nil
	}
	subs := p.subscriptions
	monitor := p.monitor
	p.link = nil
	p.profile = nil
	p.monitor = nil
	p.subscriptions = nil
	p.mu.Unlock()

	var unsubscribeErrors []string
	for _, s := range subs {
		s.task.Cancel()
		if cancelLink {
			if err := NormalizeError(link.Unsubscribe(s.char, s.indicate)); err != nil {
				unsubscribeErrors = append(unsubscribeErrors, fmt.Sprintf("%s: %v", s.char.UUID, err))
			}
		}
		p.closeStream(s)
	}
	if len(unsubscribeErrors) > 0 {
		p.logger().WithField("errors", strings.Join(unsubscribeErrors, "; ")).
			Warn("Failed to unsubscribe from some characteristics during disconnect")
	}
	if monitor != nil {
		monitor.Cancel()
	}

	var err error
	if cancelLink {
		err = NormalizeError(link.CancelConnection())
		if err != nil {
			p.logger().WithField("error", err).Warn("BLE device disconnected with errors")
		}
	}

	p.logger().Info("BLE device disconnected")
	p.adapter.emit(device.Event{Type: device.EventDisconnected, PeripheralID: p.id})
	return err
}

// DiscoverServices resolves the full GATT profile. The discovery call itself
// cannot be interrupted; when ctx ends first its result is discarded.
func (p *Peripheral) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	p.mu.RLock()
	link := p.link
	p.mu.RUnlock()
	if link == nil {
		return nil, device.ErrNotConnected
	}

	type result struct {
		profile *ble.Profile
		err     error
	}
	done := make(chan result, 1)
	groutine.Go(ctx, "ble-discover-"+p.id, func(context.Context) {
		profile, err := link.DiscoverProfile(true)
		done <- result{profile, err}
	})

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		p.logger().WithField("error", res.err).Error("Failed to discover profile")
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(res.err))
	}

	p.mu.Lock()
	if p.link != link {
		p.mu.Unlock()
		return nil, device.ErrNotConnected
	}
	p.profile = res.profile
	p.mu.Unlock()

	services := newServices(res.profile)
	p.logger().WithField("services", len(services)).Debug("Profile discovered successfully")
	return services, nil
}

// Subscribe enables notifications, or indications when that is all the
// characteristic supports. DiscoverServices must have been called first.
func (p *Peripheral) Subscribe(ctx context.Context, char device.Characteristic) (<-chan device.Notification, error) {
	p.mu.RLock()
	link, profile := p.link, p.profile
	p.mu.RUnlock()
	if link == nil {
		return nil, device.ErrNotConnected
	}

	bleChar := findCharacteristic(profile, char)
	if bleChar == nil {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{char.UUID}}
	}
	indicate := bleChar.Property&ble.CharNotify == 0
	if indicate && bleChar.Property&ble.CharIndicate == 0 {
		return nil, fmt.Errorf("characteristic %s: %w", char.UUID, device.ErrUnsupported)
	}

	uuid := device.NormalizeUUID(bleChar.UUID.String())
	stream := ringchan.New[device.Notification](p.adapter.opts.NotificationBuffer)
	handler := func(data []byte) {
		value := make([]byte, len(data))
		copy(value, data)
		if !stream.Send(device.Notification{PeripheralID: p.id, UUID: uuid, Value: value}) {
			return
		}
		if dropped := stream.Dropped(); dropped > 0 && dropped%int64(p.adapter.opts.NotificationBuffer) == 1 {
			p.logger().WithFields(logrus.Fields{
				"char_uuid": uuid,
				"dropped":   dropped,
			}).Warn("Notification consumer is slow, dropping oldest values")
		}
	}

	if err := link.Subscribe(bleChar, indicate, handler); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", uuid, NormalizeError(err))
	}

	sub := &subscription{char: bleChar, indicate: indicate, stream: stream}
	p.mu.Lock()
	if p.link != link {
		p.mu.Unlock()
		stream.Close()
		return nil, device.ErrNotConnected
	}
	p.subscriptions = append(p.subscriptions, sub)
	sub.task = groutine.Go(ctx, "ble-subscription-"+p.id+"-"+uuid, func(subCtx context.Context) {
		<-subCtx.Done()
		p.unsubscribe(link, sub)
	})
	p.mu.Unlock()

	p.logger().WithFields(logrus.Fields{
		"char_uuid": uuid,
		"indicate":  indicate,
	}).Debug("Subscribed to characteristic")
	return stream.C(), nil
}

// unsubscribe ends one subscription whose context was cancelled. Subscriptions
// already released by teardown are left alone.
func (p *Peripheral) unsubscribe(link Link, sub *subscription) {
	p.mu.Lock()
	found := false
	for i, s := range p.subscriptions {
		if s == sub {
			p.subscriptions = append(p.subscriptions[:i], p.subscriptions[i+1:]...)
			found = true
			break
		}
	}
	p.mu.Unlock()
	if !found {
		return
	}

	if err := NormalizeError(link.Unsubscribe(sub.char, sub.indicate)); err != nil {
		p.logger().WithFields(logrus.Fields{
			"char_uuid": sub.char.UUID.String(),
			"error":     err,
		}).Warn("Failed to unsubscribe from characteristic")
	}
	p.closeStream(sub)
}

// closeStream ends the consumer side of sub and logs its delivery counters
func (p *Peripheral) closeStream(sub *subscription) {
	p.logger().WithFields(logrus.Fields{
		"char_uuid": sub.char.UUID.String(),
		"delivered": sub.stream.Written(),
		"dropped":   sub.stream.Dropped(),
		"unread":    sub.stream.Len(),
	}).Debug("Closing notification stream")
	sub.stream.Close()
}
