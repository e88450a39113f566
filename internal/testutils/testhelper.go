package testutils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// CreateHeartRateMonitor returns a builder for a peripheral exposing a notifiable 2A37
func CreateHeartRateMonitor(id, name string) *PeripheralBuilder {
	return NewPeripheralBuilder(id).
		WithName(name).
		WithAdvertisedServices("180D").
		WithHeartRateService()
}

func CreatePeripheralFromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	return NewPeripheralBuilder("").FromJSON(jsonStrFmt, args...)
}

// Eventually waits until cond holds, failing the test with msgAndArgs on timeout
func (h *TestHelper) Eventually(cond func() bool, msgAndArgs ...interface{}) {
	h.T.Helper()
	require.Eventually(h.T, cond, 2*time.Second, 5*time.Millisecond, msgAndArgs...)
}

// Never asserts cond stays false for a short settle period
func (h *TestHelper) Never(cond func() bool, msgAndArgs ...interface{}) {
	h.T.Helper()
	require.Never(h.T, cond, 100*time.Millisecond, 5*time.Millisecond, msgAndArgs...)
}
