package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/stretchr/testify/suite"
)

type FakePeripheralTestSuite struct {
	suite.Suite
}

func (s *FakePeripheralTestSuite) nextEvent(events <-chan device.Event) device.Event {
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		s.FailNow("event MUST be delivered")
		return device.Event{}
	}
}

func (s *FakePeripheralTestSuite) TestFromJSON() {
	p := CreatePeripheralFromJSON(`{
		"id": "AA:01",
		"name": "Polar H10",
		"rssi": -51,
		"advertised": ["180D"],
		"class_of_device": %d,
		"services": [
			{"uuid": "180D", "characteristics": [{"uuid": "2A37", "properties": "notify"}]}
		]
	}`, 0x000918).Build()

	props, err := p.Properties()
	s.Require().NoError(err)
	s.Equal("Polar H10", props.LocalName)
	s.Equal("AA:01", props.Address, "address MUST default to the identifier")
	s.Equal(-51, props.RSSI)
	s.Equal([]string{"180D"}, props.Services)
	s.Require().NotNil(props.ClassOfDevice)
	s.Equal(uint32(0x000918), *props.ClassOfDevice)
}

func (s *FakePeripheralTestSuite) TestInvalidJSONPanics() {
	s.Panics(func() { CreatePeripheralFromJSON(`{"id": `) })
}

func (s *FakePeripheralTestSuite) TestConnectLifecycle() {
	p := CreateHeartRateMonitor("AA:02", "TICKR").Build()
	adapter := NewFakeAdapter("hci0").AddPeripheral(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := adapter.Events(ctx)
	s.Require().NoError(err)

	_, err = p.DiscoverServices(ctx)
	s.ErrorIs(err, device.ErrNotConnected)

	s.Require().NoError(p.Connect(ctx))
	s.Equal(device.Event{Type: device.EventConnected, PeripheralID: "AA:02"}, s.nextEvent(events))
	s.ErrorIs(p.Connect(ctx), device.ErrAlreadyConnected)

	services, err := p.DiscoverServices(ctx)
	s.Require().NoError(err)
	svc, ok := device.FindService(services, device.HeartRateServiceUUID)
	s.Require().True(ok)
	char, ok := svc.FindCharacteristic(device.HeartRateMeasurementUUID, device.PropNotify)
	s.Require().True(ok)

	stream, err := p.Subscribe(ctx, char)
	s.Require().NoError(err)
	p.NotifyHeartRate(0x00, 80)
	n := <-stream
	s.Equal(device.Notification{PeripheralID: "AA:02", UUID: "2a37", Value: []byte{0x00, 80}}, n)

	s.Require().NoError(p.Disconnect())
	s.Equal(device.Event{Type: device.EventDisconnected, PeripheralID: "AA:02"}, s.nextEvent(events))
	_, open := <-stream
	s.False(open, "disconnect MUST close notification streams")
	s.Equal(2, p.ConnectCalls())
	s.Equal(1, p.DisconnectCalls())
}

func (s *FakePeripheralTestSuite) TestDropLinkIsNotADisconnectCall() {
	p := CreateHeartRateMonitor("AA:03", "TICKR").Build()
	p.LinkUp()
	s.True(p.IsConnected())
	first := p.Link()
	s.NotZero(first)

	p.DropLink()
	s.False(p.IsConnected())
	s.Zero(p.Link())
	s.Zero(p.DisconnectCalls())

	p.LinkUp()
	s.NotEqual(first, p.Link(), "every link MUST get its own generation")
}

func (s *FakePeripheralTestSuite) TestInjectedErrors() {
	boom := errors.New("boom")
	p := CreateHeartRateMonitor("AA:04", "TICKR").
		WithPropertiesError(boom).
		WithDiscoverError(boom).
		WithSubscribeError(boom).
		Build()
	p.LinkUp()

	_, err := p.Properties()
	s.ErrorIs(err, boom)
	_, err = p.DiscoverServices(context.Background())
	s.ErrorIs(err, boom)
	_, err = p.Subscribe(context.Background(), device.Characteristic{UUID: "2a37"})
	s.ErrorIs(err, boom)
	s.Equal(1, p.SubscribeCalls())
	s.Zero(p.ActiveSubscriptions())

	failing := CreateHeartRateMonitor("AA:05", "TICKR").WithConnectError(boom).Build()
	s.ErrorIs(failing.Connect(context.Background()), boom)
	s.False(failing.IsConnected())
}

func (s *FakePeripheralTestSuite) TestAdapterScanVisibility() {
	p := CreateHeartRateMonitor("AA:06", "TICKR").Build()
	adapter := NewFakeAdapter("hci0").AddPeripheral(p).AddPeripheral(p)

	before, err := adapter.Peripherals()
	s.Require().NoError(err)
	s.Empty(before, "peripherals MUST stay hidden until a scan starts")

	s.Require().NoError(adapter.StartScan(context.Background()))
	s.ErrorIs(adapter.StartScan(context.Background()), device.ErrScanning)
	s.True(adapter.IsScanning())
	s.Require().NoError(adapter.StopScan())

	after, err := adapter.Peripherals()
	s.Require().NoError(err)
	s.Len(after, 2, "every sighting MUST be reported")

	_, err = adapter.Peripheral("AA:99")
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
	s.Same(p, adapter.FakePeripheral("AA:06"))
}

func (s *FakePeripheralTestSuite) TestEventStreamClosesWithContext() {
	adapter := NewFakeAdapter("hci0")
	ctx, cancel := context.WithCancel(context.Background())
	events, err := adapter.Events(ctx)
	s.Require().NoError(err)
	s.Equal(1, adapter.Subscribers())

	cancel()
	s.Eventually(func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return adapter.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFakePeripheralTestSuite(t *testing.T) {
	suite.Run(t, new(FakePeripheralTestSuite))
}
