// Package heartrate decodes Heart Rate Measurement (0x2A37) notification payloads.
package heartrate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Flags bits of the first payload byte
const (
	FlagValueFormat16   byte = 0x01
	FlagContactDetected byte = 0x02
	FlagContactSupport  byte = 0x04
	FlagEnergyExpended  byte = 0x08
	FlagRRIntervals     byte = 0x10
)

// Decode errors. Both are local to one notification: the caller drops the
// payload and keeps consuming the stream.
var (
	ErrPayloadTooShort  = errors.New("payload too short")
	ErrPayloadTruncated = errors.New("payload truncated")
)

// SensorContact is the skin-contact status reported in flag bits 1-2
type SensorContact int

const (
	ContactNotSupported SensorContact = iota
	ContactNotDetected
	ContactDetected
)

func (c SensorContact) String() string {
	switch c {
	case ContactNotSupported:
		return "not supported"
	case ContactNotDetected:
		return "not detected"
	case ContactDetected:
		return "detected"
	default:
		return fmt.Sprintf("contact(%d)", int(c))
	}
}

// Measurement is one decoded Heart Rate Measurement
type Measurement struct {
	Flags          byte
	HeartRate      uint16 // beats per minute
	Contact        SensorContact
	EnergyExpended *uint16  // kilojoules, nil when absent
	RRIntervals    []uint16 // 1/1024 second units
}

// HasEnergyExpended reports whether the energy expended field was present
func (m Measurement) HasEnergyExpended() bool {
	return m.EnergyExpended != nil
}

// RRDurations converts the RR intervals from 1/1024 s units to durations
func (m Measurement) RRDurations() []time.Duration {
	out := make([]time.Duration, len(m.RRIntervals))
	for i, rr := range m.RRIntervals {
		out[i] = time.Duration(rr) * time.Second / 1024
	}
	return out
}

func (m Measurement) String() string {
	s := fmt.Sprintf("%d bpm, contact %s", m.HeartRate, m.Contact)
	if m.HasEnergyExpended() {
		s += fmt.Sprintf(", energy %d kJ", *m.EnergyExpended)
	}
	if len(m.RRIntervals) > 0 {
		s += fmt.Sprintf(", rr %v", m.RRDurations())
	}
	return s
}

// Decode parses a raw Heart Rate Measurement payload.
//
// Layout:
//
//	| flags | hr (1 or 2) | energy (2, opt) | rr (2 each, opt) ... |
//
// All multi-byte fields are little-endian.
func Decode(payload []byte) (Measurement, error) {
	if len(payload) < 2 {
		return Measurement{}, fmt.Errorf("%w: got %d bytes, need at least 2", ErrPayloadTooShort, len(payload))
	}

	flags := payload[0]
	m := Measurement{
		Flags:   flags,
		Contact: contactFromFlags(flags),
	}
	rest := payload[1:]

	if flags&FlagValueFormat16 != 0 {
		if len(rest) < 2 {
			return Measurement{}, fmt.Errorf("%w: 16-bit heart rate needs 2 bytes, %d left", ErrPayloadTruncated, len(rest))
		}
		m.HeartRate = binary.LittleEndian.Uint16(rest)
		rest = rest[2:]
	} else {
		m.HeartRate = uint16(rest[0])
		rest = rest[1:]
	}

	if flags&FlagEnergyExpended != 0 {
		if len(rest) < 2 {
			return Measurement{}, fmt.Errorf("%w: energy expended needs 2 bytes, %d left", ErrPayloadTruncated, len(rest))
		}
		energy := binary.LittleEndian.Uint16(rest)
		m.EnergyExpended = &energy
		rest = rest[2:]
	}

	if flags&FlagRRIntervals != 0 {
		if len(rest)%2 != 0 {
			return Measurement{}, fmt.Errorf("%w: odd RR interval byte count %d", ErrPayloadTruncated, len(rest))
		}
		m.RRIntervals = make([]uint16, 0, len(rest)/2)
		for ; len(rest) >= 2; rest = rest[2:] {
			m.RRIntervals = append(m.RRIntervals, binary.LittleEndian.Uint16(rest))
		}
	}

	return m, nil
}

func contactFromFlags(flags byte) SensorContact {
	switch (flags >> 1) & 0x03 {
	case 0x02:
		return ContactNotDetected
	case 0x03:
		return ContactDetected
	default:
		return ContactNotSupported
	}
}
