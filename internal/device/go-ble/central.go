package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Advertisement is the part of ble.Advertisement the backend reads
type Advertisement interface {
	LocalName() string
	RSSI() int
	Connectable() bool
	Services() []ble.UUID
	Addr() ble.Addr
}

// Link is the part of ble.Client a peripheral drives once connected
type Link interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// Central is the part of ble.Device an adapter drives
type Central interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Dial(ctx context.Context, addr ble.Addr) (Link, error)
}

// bleCentral wraps ble.Device to implement the Central interface
type bleCentral struct {
	dev ble.Device
}

// Scan wraps the raw ble.Device.Scan to hand ble.Advertisement values to handler
func (c *bleCentral) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(adv)
	}
	return NormalizeError(c.dev.Scan(ctx, allowDup, bleHandler))
}

func (c *bleCentral) Dial(ctx context.Context, addr ble.Addr) (Link, error) {
	client, err := c.dev.Dial(ctx, addr)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return client, nil
}

// DeviceFactory creates the Central for an adapter identifier (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func(adapterID string) (Central, error) {
	dev, err := newPlatformDevice(adapterID)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &bleCentral{dev: dev}, nil
}

// disconnectNotifier is implemented by clients that report link loss
type disconnectNotifier interface {
	Disconnected() <-chan struct{}
}
