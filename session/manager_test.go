package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/testutils"
	"github.com/srg/hrmon/scanner"
	"github.com/srg/hrmon/session"
	"github.com/stretchr/testify/require"
	suitelib "github.com/stretchr/testify/suite"
)

const (
	tickrA = "11:11:11:11:11:01"
	tickrB = "11:11:11:11:11:02"
	lamp   = "11:11:11:11:11:03"
)

type ManagerTestSuite struct {
	testutils.FakeAdapterSuite

	manager *session.Manager
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.WithPeripheral(testutils.CreateHeartRateMonitor(tickrA, "TICKR A"))
	suite.WithPeripheral(testutils.CreateHeartRateMonitor(tickrB, "TICKR B"))
	suite.WithPeripheral(testutils.NewPeripheralBuilder(lamp).
		WithName("Lamp").
		WithService("FFE0").
		WithCharacteristic("FFE1", "write"))

	suite.FakeAdapterSuite.SetupTest()

	m, err := session.NewManager([]device.Adapter{suite.Adapter}, suite.Store, suite.Logger, session.ManagerOptions{
		ScanWindow: 20 * time.Millisecond,
	})
	suite.Require().NoError(err)
	suite.manager = m
}

// listen runs the event loop until the returned stop function is called
func (suite *ManagerTestSuite) listen() (stop func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- suite.manager.Listen(ctx) }()

	suite.Eventually(func() bool {
		return suite.Adapter.Subscribers() == 1
	}, "manager MUST subscribe to adapter events")

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(suite.TestTimeout):
			suite.FailNow("Listen MUST return after cancel")
			return nil
		}
	}
}

func (suite *ManagerTestSuite) waitState(id string, want session.State) {
	suite.Eventually(func() bool {
		state, ok := suite.manager.Sessions()[id]
		return ok && state == want
	}, "session %s MUST reach %s", id, want)
}

func (suite *ManagerTestSuite) TestConnectCreatesActiveSession() {
	stop := suite.listen()
	defer stop()

	suite.Require().NoError(suite.manager.Connect(context.Background(), tickrA))
	suite.waitState(tickrA, session.StateActive)

	suite.Peripheral(tickrA).NotifyHeartRate(0x06, 65)
	suite.Eventually(func() bool {
		return suite.manager.Snapshot().HeartRate == 65
	})
	suite.Equal([]string{tickrA}, suite.manager.Snapshot().Connected)
}

func (suite *ManagerTestSuite) TestDuplicateConnectEventsKeepOneSession() {
	stop := suite.listen()
	defer stop()

	p := suite.Peripheral(tickrA)
	p.LinkUp()
	p.LinkUp()
	suite.waitState(tickrA, session.StateActive)

	suite.Helper.Never(func() bool {
		return p.SubscribeCalls() > 1
	}, "one peripheral MUST have at most one session")
	suite.Len(suite.manager.Sessions(), 1)
}

func (suite *ManagerTestSuite) TestDisconnectRemovesSession() {
	stop := suite.listen()
	defer stop()

	p := suite.Peripheral(tickrA)
	suite.Require().NoError(suite.manager.Connect(context.Background(), tickrA))
	suite.waitState(tickrA, session.StateActive)

	p.NotifyHeartRate(0x00, 61)
	suite.Eventually(func() bool { return suite.manager.Snapshot().HeartRate == 61 })

	p.DropLink()
	suite.Eventually(func() bool {
		return len(suite.manager.Sessions()) == 0
	}, "disconnected peripheral MUST lose its session")
	suite.Empty(suite.manager.Snapshot().Connected)

	p.NotifyHeartRate(0x00, 190)
	suite.Helper.Never(func() bool {
		return suite.manager.Snapshot().HeartRate == 190
	}, "no value MUST be written after disconnect")
}

func (suite *ManagerTestSuite) TestReconnectStartsFreshSession() {
	stop := suite.listen()
	defer stop()

	p := suite.Peripheral(tickrA)
	p.LinkUp()
	suite.waitState(tickrA, session.StateActive)
	p.DropLink()
	suite.Eventually(func() bool { return len(suite.manager.Sessions()) == 0 })

	p.LinkUp()
	suite.waitState(tickrA, session.StateActive)
	suite.Equal(2, p.SubscribeCalls())
}

func (suite *ManagerTestSuite) TestLastWriterWinsAcrossSessions() {
	stop := suite.listen()
	defer stop()

	a, b := suite.Peripheral(tickrA), suite.Peripheral(tickrB)
	a.LinkUp()
	b.LinkUp()
	suite.waitState(tickrA, session.StateActive)
	suite.waitState(tickrB, session.StateActive)

	a.NotifyHeartRate(0x00, 60)
	suite.Eventually(func() bool { return suite.manager.Snapshot().HeartRate == 60 })
	b.NotifyHeartRate(0x00, 90)
	suite.Eventually(func() bool { return suite.manager.Snapshot().HeartRate == 90 })
	a.NotifyHeartRate(0x00, 61)
	suite.Eventually(func() bool { return suite.manager.Snapshot().HeartRate == 61 })

	snap := suite.manager.Snapshot()
	suite.Require().Len(snap.History, 3)
	suite.Equal([]string{tickrA, tickrB, tickrA},
		[]string{snap.History[0].PeripheralID, snap.History[1].PeripheralID, snap.History[2].PeripheralID})
	suite.Equal([]string{tickrA, tickrB}, snap.Connected)
}

func (suite *ManagerTestSuite) TestRejectedPeripheralIsDropped() {
	stop := suite.listen()
	defer stop()

	p := suite.Peripheral(lamp)
	p.LinkUp()

	suite.Eventually(func() bool {
		return strings.Contains(suite.manager.Snapshot().LastError, session.ErrServiceNotFound.Error())
	}, "rejection MUST be visible in the snapshot")
	suite.Eventually(func() bool { return len(suite.manager.Sessions()) == 0 })
	suite.Zero(p.SubscribeCalls())
	suite.False(p.IsConnected())
	suite.Empty(suite.manager.Snapshot().Connected)
}

func (suite *ManagerTestSuite) TestListenStopsSessionsOnCancel() {
	stop := suite.listen()

	p := suite.Peripheral(tickrA)
	p.LinkUp()
	suite.waitState(tickrA, session.StateActive)

	suite.ErrorIs(stop(), context.Canceled)
	suite.Empty(suite.manager.Sessions())
	suite.Empty(suite.manager.Snapshot().Connected)

	p.NotifyHeartRate(0x00, 150)
	suite.Helper.Never(func() bool { return suite.manager.Snapshot().HeartRate == 150 })
}

func (suite *ManagerTestSuite) TestListenAdoptsConnectedPeripherals() {
	_, err := suite.manager.Scan(context.Background())
	suite.Require().NoError(err)
	suite.Require().NoError(suite.manager.Connect(context.Background(), tickrB))

	stop := suite.listen()
	defer stop()

	suite.waitState(tickrB, session.StateActive)
	suite.Equal(1, suite.Peripheral(tickrB).SubscribeCalls())
}

func (suite *ManagerTestSuite) TestListenTwice() {
	stop := suite.listen()
	defer stop()

	suite.ErrorIs(suite.manager.Listen(context.Background()), session.ErrAlreadyListening)
	suite.ErrorIs(suite.manager.SelectAdapter("hci0"), session.ErrAdapterInUse)
}

func (suite *ManagerTestSuite) TestConnectUnknownPeripheral() {
	err := suite.manager.Connect(context.Background(), "00:00:00:00:00:00")

	var nf *device.NotFoundError
	suite.Require().ErrorAs(err, &nf)
	suite.Equal("peripheral", nf.Resource)
	suite.NotEmpty(suite.manager.Snapshot().LastError)
}

func (suite *ManagerTestSuite) TestConnectFailureIsRecorded() {
	p := testutils.CreateHeartRateMonitor("11:11:11:11:11:09", "TICKR X").
		WithConnectError(errors.New("page timeout")).
		Build()
	suite.Adapter.AddPeripheral(p)

	err := suite.manager.Connect(context.Background(), p.ID())

	var terr *device.TransportError
	suite.Require().ErrorAs(err, &terr)
	suite.Equal("connect", terr.Op)
	suite.Contains(suite.manager.Snapshot().LastError, "page timeout")
}

func (suite *ManagerTestSuite) TestDisconnect() {
	stop := suite.listen()
	defer stop()

	suite.Require().NoError(suite.manager.Connect(context.Background(), tickrA))
	suite.waitState(tickrA, session.StateActive)

	suite.Require().NoError(suite.manager.Disconnect(tickrA))
	suite.Eventually(func() bool { return len(suite.manager.Sessions()) == 0 })
}

func (suite *ManagerTestSuite) TestScan() {
	devices, err := suite.manager.Scan(context.Background())
	suite.Require().NoError(err)
	suite.Len(devices, 3)
	suite.False(suite.Adapter.IsScanning())
}

func (suite *ManagerTestSuite) TestAutoConnectMatchesByName() {
	stop := suite.listen()
	defer stop()

	connected, err := suite.manager.AutoConnect(context.Background(), func(d scanner.Descriptor) bool {
		return strings.Contains(d.Name, "TICKR")
	})
	suite.Require().NoError(err)
	suite.ElementsMatch([]string{tickrA, tickrB}, connected)

	suite.waitState(tickrA, session.StateActive)
	suite.waitState(tickrB, session.StateActive)
	suite.Zero(suite.Peripheral(lamp).ConnectCalls(), "non-matching peripheral MUST NOT be connected")
}

func TestManagerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ManagerTestSuite))
}

func TestNewManagerAdapterSelection(t *testing.T) {
	t.Run("no adapters", func(t *testing.T) {
		_, err := session.NewManager(nil, nil, nil, session.ManagerOptions{})
		require.ErrorIs(t, err, scanner.ErrNoAdaptersFound)
	})

	t.Run("single adapter is selected automatically", func(t *testing.T) {
		a := testutils.NewFakeAdapter("hci0")
		m, err := session.NewManager([]device.Adapter{a}, nil, nil, session.ManagerOptions{})
		require.NoError(t, err)

		got, err := m.Adapter()
		require.NoError(t, err)
		require.Equal(t, "hci0", got.Info().ID)
	})

	t.Run("multiple adapters require selection", func(t *testing.T) {
		a0, a1 := testutils.NewFakeAdapter("hci0"), testutils.NewFakeAdapter("hci1")
		m, err := session.NewManager([]device.Adapter{a0, a1}, nil, nil, session.ManagerOptions{})
		require.NoError(t, err)

		_, err = m.Adapter()
		require.ErrorIs(t, err, session.ErrMultipleAdaptersRequireSelection)
		_, err = m.Scan(context.Background())
		require.ErrorIs(t, err, session.ErrMultipleAdaptersRequireSelection)
		require.ErrorIs(t, m.Listen(context.Background()), session.ErrMultipleAdaptersRequireSelection)

		require.Len(t, m.Adapters(), 2)

		var nf *device.NotFoundError
		require.ErrorAs(t, m.SelectAdapter("hci7"), &nf)

		require.NoError(t, m.SelectAdapter("hci1"))
		got, err := m.Adapter()
		require.NoError(t, err)
		require.Equal(t, "hci1", got.Info().ID)
	})
}
