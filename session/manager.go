package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/telemetry"
	"github.com/srg/hrmon/scanner"
)

// Manager errors
var (
	ErrMultipleAdaptersRequireSelection = errors.New("multiple bluetooth adapters found, select one")
	ErrAlreadyListening                 = errors.New("manager is already listening")
	ErrAdapterInUse                     = errors.New("adapter cannot change while listening")
)

// ManagerOptions configures a Manager
type ManagerOptions struct {
	ScanWindow     time.Duration
	ConnectTimeout time.Duration
}

// Manager owns the selected adapter, routes its connection events to
// sessions and exposes the telemetry snapshot to the consumer.
type Manager struct {
	logger  *logrus.Logger
	store   *telemetry.Store
	scanner *scanner.Scanner
	opts    ManagerOptions

	adapters []device.Adapter
	sessions *hashmap.Map[string, *Session]

	mu        sync.Mutex
	selected  device.Adapter
	listening bool
}

// NewManager creates a manager over the available adapters. A single adapter
// is selected automatically; with several, SelectAdapter must be called
// before any adapter operation.
func NewManager(adapters []device.Adapter, store *telemetry.Store, logger *logrus.Logger, opts ManagerOptions) (*Manager, error) {
	if len(adapters) == 0 {
		return nil, scanner.ErrNoAdaptersFound
	}
	if logger == nil {
		logger = logrus.New()
	}
	if store == nil {
		store = telemetry.NewStore(telemetry.Options{})
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = scanner.DefaultWindow
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	m := &Manager{
		logger:   logger,
		store:    store,
		scanner:  scanner.NewScanner(logger, nil),
		opts:     opts,
		adapters: adapters,
		sessions: hashmap.New[string, *Session](),
	}
	if len(adapters) == 1 {
		m.selected = adapters[0]
		logger.WithField("adapter", adapters[0].Info().ID).Info("Using the only available adapter")
	} else {
		logger.WithField("adapters", len(adapters)).Info("Multiple adapters available, waiting for selection")
	}
	return m, nil
}

// Adapters lists the adapters the manager was created with
func (m *Manager) Adapters() []device.AdapterInfo {
	out := make([]device.AdapterInfo, 0, len(m.adapters))
	for _, a := range m.adapters {
		out = append(out, a.Info())
	}
	return out
}

// SelectAdapter chooses the adapter used by all subsequent operations
func (m *Manager) SelectAdapter(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		return ErrAdapterInUse
	}
	for _, a := range m.adapters {
		if a.Info().ID == id {
			m.selected = a
			m.logger.WithField("adapter", id).Info("Adapter selected")
			return nil
		}
	}
	return &device.NotFoundError{Resource: "adapter", UUIDs: []string{id}}
}

// Adapter returns the selected adapter
func (m *Manager) Adapter() (device.Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return nil, ErrMultipleAdaptersRequireSelection
	}
	return m.selected, nil
}

// Snapshot returns a consistent copy of the telemetry state
func (m *Manager) Snapshot() telemetry.Snapshot {
	return m.store.Snapshot()
}

// Sessions returns the state of every live session keyed by peripheral ID
func (m *Manager) Sessions() map[string]State {
	out := make(map[string]State, m.sessions.Len())
	m.sessions.Range(func(id string, s *Session) bool {
		out[id] = s.State()
		return true
	})
	return out
}

// Scan runs one discovery window on the selected adapter
func (m *Manager) Scan(ctx context.Context) ([]scanner.Descriptor, error) {
	adapter, err := m.Adapter()
	if err != nil {
		return nil, err
	}
	devices, err := m.scanner.Scan(ctx, adapter, m.opts.ScanWindow)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.store.RecordError(err.Error())
	}
	return devices, err
}

// Connect asks the adapter to connect to a scanned peripheral. The session
// itself is created when the adapter reports the connection.
func (m *Manager) Connect(ctx context.Context, id string) error {
	adapter, err := m.Adapter()
	if err != nil {
		return err
	}
	p, err := adapter.Peripheral(id)
	if err != nil {
		m.store.RecordError(err.Error())
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"peripheral_id": id,
		"address":       p.Address(),
	}).Info("Connecting to peripheral...")

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := p.Connect(ctx); err != nil {
		if device.IsConnectionState(err, device.AlreadyConnected) {
			return nil
		}
		terr := device.NewTransportError("connect", id, err)
		m.store.RecordError(terr.Error())
		return terr
	}
	return nil
}

// Disconnect asks the adapter to drop the link to a peripheral. The session
// is torn down when the adapter reports the disconnection.
func (m *Manager) Disconnect(id string) error {
	adapter, err := m.Adapter()
	if err != nil {
		return err
	}
	p, err := adapter.Peripheral(id)
	if err != nil {
		return err
	}
	if err := p.Disconnect(); err != nil {
		terr := device.NewTransportError("disconnect", id, err)
		m.store.RecordError(terr.Error())
		return terr
	}
	return nil
}

// AutoConnect scans once and connects every peripheral accepted by match
// that is not already connected. It returns the identifiers it connected;
// connect failures are joined into the returned error.
func (m *Manager) AutoConnect(ctx context.Context, match func(scanner.Descriptor) bool) ([]string, error) {
	devices, err := m.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var (
		connected []string
		errs      []error
	)
	for _, d := range devices {
		if d.Connected || !match(d) {
			continue
		}
		if err := m.Connect(ctx, d.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		connected = append(connected, d.ID)
	}
	return connected, errors.Join(errs...)
}

// Listen consumes the selected adapter's event stream until ctx is done or
// the stream closes. Every live session is stopped before Listen returns.
func (m *Manager) Listen(ctx context.Context) error {
	adapter, err := m.Adapter()
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.listening {
		m.mu.Unlock()
		return ErrAlreadyListening
	}
	m.listening = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.listening = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := adapter.Events(ctx)
	if err != nil {
		return device.NewTransportError("events", "", err)
	}

	m.logger.WithField("adapter", adapter.Info().ID).Info("Listening for peripheral events...")
	defer m.stopAll()

	finished := make(chan *Session)
	m.adoptConnected(ctx, adapter, finished)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case s := <-finished:
			if cur, ok := m.sessions.Get(s.ID()); ok && cur == s {
				m.sessions.Del(s.ID())
			}

		case ev, ok := <-events:
			if !ok {
				m.logger.Debug("Adapter event stream closed")
				return nil
			}
			m.route(ctx, adapter, ev, finished)
		}
	}
}

func (m *Manager) route(ctx context.Context, adapter device.Adapter, ev device.Event, finished chan<- *Session) {
	log := m.logger.WithField("peripheral_id", ev.PeripheralID)

	switch ev.Type {
	case device.EventConnected:
		if _, exists := m.sessions.Get(ev.PeripheralID); exists {
			log.Debug("Session already exists, ignoring duplicate connect event")
			return
		}
		p, err := adapter.Peripheral(ev.PeripheralID)
		if err != nil {
			log.WithField("error", err).Warn("Connected peripheral is unknown to the adapter")
			m.store.RecordError(fmt.Sprintf("peripheral %s: %v", ev.PeripheralID, err))
			return
		}

		s := New(p, m.store, m.logger, Options{ConnectTimeout: m.opts.ConnectTimeout})
		m.sessions.Set(ev.PeripheralID, s)
		log.WithField("session_id", s.SessionID()).Info("Peripheral connected, starting session")

		// The session outlives its start-up goroutine, so it is scoped to ctx
		groutine.Go(ctx, "hr-session-"+ev.PeripheralID, func(taskCtx context.Context) {
			if err := s.Start(ctx); err != nil {
				select {
				case finished <- s:
				case <-taskCtx.Done():
				}
			}
		})

	case device.EventDisconnected:
		s, ok := m.sessions.Get(ev.PeripheralID)
		if !ok {
			m.store.MarkDisconnected(ev.PeripheralID)
			return
		}
		m.sessions.Del(ev.PeripheralID)
		s.Stop()
		log.WithField("session_id", s.SessionID()).Info("Peripheral disconnected, session removed")

	default:
		log.WithField("event", ev.Type).Debug("Ignoring adapter event")
	}
}

// adoptConnected starts sessions for peripherals whose link came up before
// the event stream was subscribed.
func (m *Manager) adoptConnected(ctx context.Context, adapter device.Adapter, finished chan<- *Session) {
	peripherals, err := adapter.Peripherals()
	if err != nil {
		m.logger.WithField("error", err).Debug("Cannot list peripherals, skipping adoption")
		return
	}
	for _, p := range peripherals {
		if p.IsConnected() {
			m.route(ctx, adapter, device.Event{Type: device.EventConnected, PeripheralID: p.ID()}, finished)
		}
	}
}

func (m *Manager) stopAll() {
	var live []*Session
	m.sessions.Range(func(_ string, s *Session) bool {
		live = append(live, s)
		return true
	})
	for _, s := range live {
		m.sessions.Del(s.ID())
		s.Stop()
	}
}
