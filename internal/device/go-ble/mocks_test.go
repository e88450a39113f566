package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

type MockCentral struct {
	mock.Mock
	ads []Advertisement
}

func (m *MockCentral) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	args := m.Called(ctx, allowDup)
	if err := args.Error(0); err != nil {
		return err
	}
	for _, adv := range m.ads {
		handler(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockCentral) Dial(ctx context.Context, addr ble.Addr) (Link, error) {
	args := m.Called(ctx, addr.String())
	link, _ := args.Get(0).(Link)
	return link, args.Error(1)
}

type MockLink struct {
	mock.Mock
	disconnected chan struct{}
	handlers     map[string]ble.NotificationHandler
}

func NewMockLink() *MockLink {
	return &MockLink{
		disconnected: make(chan struct{}),
		handlers:     make(map[string]ble.NotificationHandler),
	}
}

func (m *MockLink) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	profile, _ := args.Get(0).(*ble.Profile)
	return profile, args.Error(1)
}

func (m *MockLink) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	args := m.Called(c.UUID.String(), ind)
	if args.Error(0) == nil {
		m.handlers[c.UUID.String()] = h
	}
	return args.Error(0)
}

func (m *MockLink) Unsubscribe(c *ble.Characteristic, ind bool) error {
	args := m.Called(c.UUID.String(), ind)
	return args.Error(0)
}

func (m *MockLink) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockLink) Disconnected() <-chan struct{} {
	return m.disconnected
}

// notify pushes data through the handler registered for uuid
func (m *MockLink) notify(uuid string, data []byte) {
	m.handlers[uuid](data)
}

type fakeAdvertisement struct {
	name        string
	addr        string
	rssi        int
	connectable bool
	services    []ble.UUID
}

func (a fakeAdvertisement) LocalName() string    { return a.name }
func (a fakeAdvertisement) RSSI() int            { return a.rssi }
func (a fakeAdvertisement) Connectable() bool    { return a.connectable }
func (a fakeAdvertisement) Services() []ble.UUID { return a.services }
func (a fakeAdvertisement) Addr() ble.Addr       { return ble.NewAddr(a.addr) }

func heartRateProfile(props ble.Property) *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.UUID16(0x180F),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2A19), Property: ble.CharRead | ble.CharNotify},
				},
			},
			{
				UUID: ble.UUID16(0x180D),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2A37), Property: props},
					{UUID: ble.UUID16(0x2A38), Property: ble.CharRead},
				},
			},
		},
	}
}
