package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/bledb"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/heartrate"
	"github.com/srg/hrmon/internal/telemetry"
)

// DefaultConnectTimeout bounds link establishment and GATT resolution
const DefaultConnectTimeout = 30 * time.Second

// Session errors
var (
	ErrServiceNotFound        = errors.New("heart rate service not found")
	ErrCharacteristicNotFound = errors.New("heart rate measurement characteristic not found")
)

// State is the lifecycle position of a Session
type State int

const (
	StateDiscovered State = iota
	StateConnecting
	StateServicesResolving
	StateSubscribing
	StateActive
	StateDisconnected
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "Discovered"
	case StateConnecting:
		return "Connecting"
	case StateServicesResolving:
		return "ServicesResolving"
	case StateSubscribing:
		return "Subscribing"
	case StateActive:
		return "Active"
	case StateDisconnected:
		return "Disconnected"
	case StateRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateDisconnected || s == StateRejected
}

// Options configures a Session
type Options struct {
	ConnectTimeout time.Duration
}

// Session drives one connected peripheral from GATT resolution to an active
// heart rate notification stream, publishing decoded measurements to the store.
type Session struct {
	id         string
	sessionID  string
	peripheral device.Peripheral
	store      *telemetry.Store
	logger     *logrus.Logger
	opts       Options

	mu      sync.Mutex
	state   State
	err     error
	stopped bool
	link    uint64 // generation of the link this session drives
	cancel  context.CancelFunc
	task    *groutine.Task
}

// New creates a session in the Discovered state
func New(p device.Peripheral, store *telemetry.Store, logger *logrus.Logger, opts Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	return &Session{
		id:         p.ID(),
		sessionID:  uuid.NewString(),
		peripheral: p,
		store:      store,
		logger:     logger,
		opts:       opts,
		state:      StateDiscovered,
	}
}

// ID returns the peripheral identifier the session belongs to
func (s *Session) ID() string {
	return s.id
}

// SessionID returns the correlation identifier used in logs
func (s *Session) SessionID() string {
	return s.sessionID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that terminated the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) fields() logrus.Fields {
	return logrus.Fields{
		"peripheral_id": s.id,
		"session_id":    s.sessionID,
	}
}

// advance moves to next unless the session is already terminal or stopped.
// onEnter runs under the session lock so it cannot interleave with Stop.
func (s *Session) advance(next State, onEnter func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state.IsTerminal() {
		return false
	}
	s.state = next
	if onEnter != nil {
		onEnter()
	}
	s.logger.WithFields(s.fields()).WithField("state", next).Debug("Session state changed")
	return true
}

// Start resolves the heart rate service and subscribes to its measurement
// characteristic. It returns nil once the session is Active; the notification
// stream is then consumed in the background until Stop is called or the
// stream ends.
//
// Any failure is recorded in the store and ends the session: a peripheral
// without the heart rate service ends Rejected, everything else Disconnected.
// In both cases the link the session drove is disconnected if it is still up.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped || s.state != StateDiscovered {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session %s cannot start from state %s", s.id, state)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if !s.advance(StateConnecting, func() { s.store.MarkConnected(s.id) }) {
		return context.Canceled
	}
	if !s.peripheral.IsConnected() {
		connectCtx, connectCancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
		err := s.peripheral.Connect(connectCtx)
		connectCancel()
		if err != nil && !device.IsConnectionState(err, device.AlreadyConnected) {
			return s.fail(ctx, StateDisconnected, device.NewTransportError("connect", s.id, err))
		}
	}

	link := s.peripheral.Link()
	if !s.advance(StateServicesResolving, func() { s.link = link }) {
		return context.Canceled
	}
	discoverCtx, discoverCancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	services, err := s.peripheral.DiscoverServices(discoverCtx)
	discoverCancel()
	if err != nil {
		return s.fail(ctx, StateDisconnected, device.NewTransportError("discover", s.id, err))
	}

	svc, ok := device.FindService(services, device.HeartRateServiceUUID)
	if !ok {
		s.logger.WithFields(s.fields()).WithField("services", len(services)).
			Info("Peripheral does not expose the heart rate service, rejecting")
		return s.fail(ctx, StateRejected, fmt.Errorf("peripheral %s: %w", s.id, ErrServiceNotFound))
	}

	char, ok := svc.FindCharacteristic(device.HeartRateMeasurementUUID, device.PropNotify)
	if !ok {
		return s.fail(ctx, StateDisconnected, fmt.Errorf("peripheral %s: %w", s.id, ErrCharacteristicNotFound))
	}

	if !s.advance(StateSubscribing, nil) {
		return context.Canceled
	}
	s.logger.WithFields(s.fields()).WithFields(logrus.Fields{
		"service_uuid": svc.UUID,
		"char_uuid":    char.UUID,
	}).Debug("Subscribing to heart rate notifications")

	stream, err := s.peripheral.Subscribe(ctx, char)
	if err != nil {
		return s.fail(ctx, StateDisconnected, device.NewTransportError("subscribe", s.id, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state.IsTerminal() {
		return context.Canceled
	}
	s.task = groutine.Go(ctx, "hr-notify-"+s.id, func(ctx context.Context) {
		s.consume(ctx, stream)
	})
	s.state = StateActive
	s.logger.WithFields(s.fields()).Info("Heart rate session active")
	return nil
}

// fail terminates the session in the given state. When ctx is already done
// the failure is a side effect of Stop and is not recorded.
func (s *Session) fail(ctx context.Context, terminal State, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	if s.stopped || s.state.IsTerminal() {
		s.mu.Unlock()
		return err
	}
	s.state = terminal
	s.err = err
	link := s.link
	s.store.RecordError(err.Error())
	s.store.MarkDisconnected(s.id)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	entry := s.logger.WithFields(s.fields()).WithFields(logrus.Fields{
		"state": terminal,
		"error": err,
	})
	if terminal == StateRejected {
		entry.Info("Session rejected")
	} else {
		entry.Error("Session failed")
	}

	// A link that dropped and came back belongs to the next session
	if link == 0 || s.peripheral.Link() != link {
		s.logger.WithFields(s.fields()).Debug("Session link is gone, skipping disconnect")
		return err
	}
	if derr := s.peripheral.Disconnect(); derr != nil {
		s.logger.WithFields(s.fields()).WithField("error", derr).Warn("Failed to disconnect peripheral")
	}
	return err
}

func (s *Session) consume(ctx context.Context, stream <-chan device.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-stream:
			if !ok {
				s.logger.WithFields(s.fields()).WithField("goroutine", groutine.GetName(ctx)).
					Debug("Notification stream closed")
				return
			}
			s.handle(ctx, n)
		}
	}
}

func (s *Session) handle(ctx context.Context, n device.Notification) {
	if !device.EqualUUID(n.UUID, device.HeartRateMeasurementUUID) {
		s.logger.WithFields(s.fields()).WithFields(logrus.Fields{
			"char_uuid": n.UUID,
			"char_name": bledb.LookupCharacteristic(n.UUID),
		}).Debug("Ignoring unknown notification")
		return
	}

	m, err := heartrate.Decode(n.Value)
	if err != nil {
		s.logger.WithFields(s.fields()).WithFields(logrus.Fields{
			"error":   err,
			"payload": fmt.Sprintf("% X", n.Value),
		}).Warn("Dropping malformed heart rate measurement")
		return
	}

	// A cancelled session must not publish values received after the cancel
	if ctx.Err() != nil {
		return
	}
	s.store.Publish(s.id, m)
	s.logger.WithFields(s.fields()).WithField("heart_rate", m.HeartRate).Debug("Published heart rate")
}

// Stop cancels the notification task, waits for it to exit and removes the
// peripheral from the store's connected set. It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	task := s.task
	s.mu.Unlock()

	if task != nil {
		task.Stop()
		s.logger.WithFields(s.fields()).WithField("goroutine", task.Name()).Debug("Notification task finished")
	}

	s.mu.Lock()
	if !s.state.IsTerminal() {
		s.state = StateDisconnected
		s.store.MarkDisconnected(s.id)
	}
	state := s.state
	s.mu.Unlock()

	s.logger.WithFields(s.fields()).WithField("state", state).Info("Session stopped")
}
