// Package telemetry holds the latest decoded sensor data shared between the
// background BLE sessions and a polling display.
package telemetry

import (
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/srg/hrmon/internal/heartrate"
)

const (
	DefaultHistorySize  = 3600
	DefaultErrorLogSize = 32
)

// Sample is one published heart rate reading
type Sample struct {
	PeripheralID   string
	HeartRate      uint16
	Contact        heartrate.SensorContact
	EnergyExpended *uint16
	RRIntervals    []uint16
	At             time.Time
}

// ErrorEntry is one recorded session failure
type ErrorEntry struct {
	Message string
	At      time.Time
}

// Snapshot is a consistent copy of the store. Nothing in it aliases store memory.
type Snapshot struct {
	HeartRate uint16 // 0 until the first measurement
	History   []Sample
	Connected []string // sorted peripheral identifiers
	LastError string
	Errors    []ErrorEntry
	UpdatedAt time.Time
}

// Options bounds the store's history and error log
type Options struct {
	HistorySize  int
	ErrorLogSize int
}

// Store is a concurrency-safe holder of the latest measurement, a bounded
// history, the connected peripheral set and a bounded error log.
//
// All methods are thread-safe.
type Store struct {
	mu        sync.RWMutex
	heartRate uint16
	history   []Sample
	connected mapset.Set[string]
	errors    []ErrorEntry
	updatedAt time.Time

	historySize  int
	errorLogSize int
	now          func() time.Time
}

// NewStore creates an empty store. Non-positive sizes fall back to the defaults.
func NewStore(opts Options) *Store {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.ErrorLogSize <= 0 {
		opts.ErrorLogSize = DefaultErrorLogSize
	}
	return &Store{
		connected:    mapset.NewThreadUnsafeSet[string](),
		historySize:  opts.HistorySize,
		errorLogSize: opts.ErrorLogSize,
		now:          time.Now,
	}
}

// Publish makes m the current heart rate and appends it to the history.
// The latest call wins regardless of which peripheral published it.
func (s *Store) Publish(peripheralID string, m heartrate.Measurement) {
	sample := Sample{
		PeripheralID:   peripheralID,
		HeartRate:      m.HeartRate,
		Contact:        m.Contact,
		EnergyExpended: copyUint16Ptr(m.EnergyExpended),
		RRIntervals:    append([]uint16(nil), m.RRIntervals...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sample.At = s.now()
	s.heartRate = m.HeartRate
	s.history = appendBounded(s.history, sample, s.historySize)
	s.updatedAt = sample.At
}

// MarkConnected adds a peripheral to the connected set
func (s *Store) MarkConnected(peripheralID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected.Add(peripheralID)
	s.updatedAt = s.now()
}

// MarkDisconnected removes a peripheral from the connected set
func (s *Store) MarkDisconnected(peripheralID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected.Remove(peripheralID)
	s.updatedAt = s.now()
}

// RecordError appends msg to the bounded error log and makes it the last error
func (s *Store) RecordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := ErrorEntry{Message: msg, At: s.now()}
	s.errors = appendBounded(s.errors, entry, s.errorLogSize)
	s.updatedAt = entry.At
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		HeartRate: s.heartRate,
		History:   make([]Sample, len(s.history)),
		Connected: s.connected.ToSlice(),
		Errors:    make([]ErrorEntry, len(s.errors)),
		UpdatedAt: s.updatedAt,
	}
	for i, sample := range s.history {
		sample.EnergyExpended = copyUint16Ptr(sample.EnergyExpended)
		sample.RRIntervals = append([]uint16(nil), sample.RRIntervals...)
		snap.History[i] = sample
	}
	copy(snap.Errors, s.errors)
	if n := len(s.errors); n > 0 {
		snap.LastError = s.errors[n-1].Message
	}
	sort.Strings(snap.Connected)
	return snap
}

// appendBounded appends v and drops the oldest entries beyond limit
func appendBounded[T any](buf []T, v T, limit int) []T {
	buf = append(buf, v)
	if over := len(buf) - limit; over > 0 {
		// Shift in place so the backing array does not grow without bound
		n := copy(buf, buf[over:])
		var zero T
		for i := n; i < len(buf); i++ {
			buf[i] = zero
		}
		buf = buf[:n]
	}
	return buf
}

func copyUint16Ptr(p *uint16) *uint16 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
