package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/telemetry"
	"github.com/stretchr/testify/suite"
)

// FakeAdapterSuite provides a reusable test suite backed by a FakeAdapter.
//
// Peripherals configured before the parent SetupTest runs are attached to
// the adapter:
//
//	type SessionSuite struct {
//	    testutils.FakeAdapterSuite
//	}
//
//	func (s *SessionSuite) SetupTest() {
//	    s.WithPeripheral(testutils.CreateHeartRateMonitor("AA:BB", "TICKR 1"))
//	    s.FakeAdapterSuite.SetupTest() // Call parent last to apply configuration
//	}
type FakeAdapterSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	Adapter     *FakeAdapter
	Store       *telemetry.Store
	TestTimeout time.Duration

	pending []*PeripheralBuilder
}

// WithPeripheral queues a peripheral to be attached on the next SetupTest
func (s *FakeAdapterSuite) WithPeripheral(b *PeripheralBuilder) *FakeAdapterSuite {
	s.pending = append(s.pending, b)
	return s
}

func (s *FakeAdapterSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	if s.TestTimeout == 0 {
		s.TestTimeout = 2 * time.Second
	}

	s.Adapter = NewFakeAdapter("hci0")
	for _, b := range s.pending {
		s.Adapter.AddPeripheral(b.Build())
	}
	s.pending = nil

	s.Store = telemetry.NewStore(telemetry.Options{})
}

// Peripheral returns the fake peripheral registered under id, failing the test if missing
func (s *FakeAdapterSuite) Peripheral(id string) *FakePeripheral {
	p := s.Adapter.FakePeripheral(id)
	s.Require().NotNil(p, "peripheral %s MUST be registered", id)
	return p
}

// Eventually waits for cond within TestTimeout
func (s *FakeAdapterSuite) Eventually(cond func() bool, msgAndArgs ...interface{}) {
	s.T().Helper()
	s.Require().Eventually(cond, s.TestTimeout, 5*time.Millisecond, msgAndArgs...)
}
