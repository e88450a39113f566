package device

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError represents an error when a GATT resource is not found on a peripheral
type NotFoundError struct {
	Resource string   // "service", "characteristic", "peripheral", "adapter"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth is turned off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// Operation errors
var (
	ErrUnsupported = errors.New("unsupported")
	ErrScanning    = errors.New("scan already in progress")
)

// TransportError wraps any failure reported by the underlying BLE stack.
// It is session-local: it is recorded and never aborts the process.
type TransportError struct {
	Op           string // "connect", "discover", "subscribe", "scan", ...
	PeripheralID string
	Err          error
}

func (e *TransportError) Error() string {
	if e.PeripheralID == "" {
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error during %s on %s: %v", e.Op, e.PeripheralID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err unless it is nil or already a TransportError.
func NewTransportError(op, peripheralID string, err error) error {
	if err == nil {
		return nil
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &TransportError{Op: op, PeripheralID: peripheralID, Err: err}
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// AdapterInfo describes one local BLE radio
type AdapterInfo struct {
	ID   string // stable identifier, e.g. "hci0" or "default"
	Name string
}

// PeripheralProperties is the cached advertisement state of a peripheral.
// ClassOfDevice is nil when the stack does not expose it (most LE-only radios).
type PeripheralProperties struct {
	LocalName     string
	Address       string
	RSSI          int
	Connectable   bool
	Connected     bool
	Services      []string
	ClassOfDevice *uint32
}

// Adapter is the capability surface of one local BLE radio.
type Adapter interface {
	Info() AdapterInfo

	// StartScan begins unfiltered discovery; it returns once discovery is running.
	StartScan(ctx context.Context) error
	// StopScan ends discovery. Calling it while not scanning is a no-op.
	StopScan() error
	// Peripherals returns the peripherals currently known to the adapter.
	Peripherals() ([]Peripheral, error)
	// Peripheral looks up a known peripheral by its identifier.
	Peripheral(id string) (Peripheral, error)
	// Events returns the adapter-wide event stream. It is closed when ctx is done.
	Events(ctx context.Context) (<-chan Event, error)
}

// Peripheral is the capability surface of one remote BLE device.
type Peripheral interface {
	ID() string
	Address() string
	Properties() (*PeripheralProperties, error)

	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	// Link identifies the current connection. It changes on every newly
	// established link and is 0 while disconnected.
	Link() uint64

	// DiscoverServices resolves all GATT services and characteristics.
	DiscoverServices(ctx context.Context) ([]Service, error)
	// Subscribe enables notifications on char and returns its notification stream.
	// The stream preserves arrival order and is closed when ctx is done or the
	// peripheral disconnects.
	Subscribe(ctx context.Context, char Characteristic) (<-chan Notification, error)
}

// Notification is one value pushed by a peripheral
type Notification struct {
	PeripheralID string
	UUID         string // normalized characteristic UUID
	Value        []byte
}
