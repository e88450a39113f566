// Package cod classifies the 24-bit Bluetooth Class of Device field.
//
//	| 23 ........ 13 | 12 ... 8 | 7 ... 2 | 1 0 |
//	| service classes | major   | minor   | fmt |
package cod

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ServiceClass is one major service class flag (bits 13-23)
type ServiceClass int

const (
	LimitedDiscoverableMode ServiceClass = iota
	Reserved
	Positioning
	Networking
	Rendering
	Capturing
	ObjectTransfer
	Audio
	Telephony
	Information
)

var serviceClassNames = map[ServiceClass]string{
	LimitedDiscoverableMode: "Limited Discoverable Mode",
	Reserved:                "Reserved",
	Positioning:             "Positioning",
	Networking:              "Networking",
	Rendering:               "Rendering",
	Capturing:               "Capturing",
	ObjectTransfer:          "Object Transfer",
	Audio:                   "Audio",
	Telephony:               "Telephony",
	Information:             "Information",
}

func (c ServiceClass) String() string {
	if name, ok := serviceClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ServiceClass(%d)", int(c))
}

// serviceClassBits maps bit positions 13..23 to their flag
var serviceClassBits = [...]struct {
	bit   uint
	class ServiceClass
}{
	{13, LimitedDiscoverableMode},
	{14, Reserved},
	{15, Reserved},
	{16, Positioning},
	{17, Networking},
	{18, Rendering},
	{19, Capturing},
	{20, ObjectTransfer},
	{21, Audio},
	{22, Telephony},
	{23, Information},
}

// MajorDeviceClass is the 5-bit major device class (bits 8-12)
type MajorDeviceClass int

const (
	Miscellaneous MajorDeviceClass = iota
	Computer
	Phone
	LANAccessPoint
	AudioVideo
	Peripheral
	Imaging
	Wearable
	Toy
	Health
	Uncategorized
	OtherMajor
)

var majorNames = map[MajorDeviceClass]string{
	Miscellaneous:  "Miscellaneous",
	Computer:       "Computer",
	Phone:          "Phone",
	LANAccessPoint: "LAN/Network Access Point",
	AudioVideo:     "Audio/Video",
	Peripheral:     "Peripheral",
	Imaging:        "Imaging",
	Wearable:       "Wearable",
	Toy:            "Toy",
	Health:         "Health",
	Uncategorized:  "Uncategorized",
	OtherMajor:     "Other",
}

func (c MajorDeviceClass) String() string {
	if name, ok := majorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("MajorDeviceClass(%d)", int(c))
}

// MinorDeviceClass is the 6-bit minor device class (bits 2-7).
// Only the Health major class is decoded; all others yield MinorNotSupported.
type MinorDeviceClass int

const (
	MinorNotSupported MinorDeviceClass = iota
	MinorUndefined
	BloodPressureMonitor
	Thermometer
	WeighingScale
	GlucoseMeter
	PulseOximeter
	HeartRateMonitor
	HealthDataDisplay
	MinorOther
)

var minorNames = map[MinorDeviceClass]string{
	MinorNotSupported:    "Not Supported",
	MinorUndefined:       "Undefined",
	BloodPressureMonitor: "Blood Pressure Monitor",
	Thermometer:          "Thermometer",
	WeighingScale:        "Weighing Scale",
	GlucoseMeter:         "Glucose Meter",
	PulseOximeter:        "Pulse Oximeter",
	HeartRateMonitor:     "Heart Rate Monitor",
	HealthDataDisplay:    "Health Data Display",
	MinorOther:           "Other",
}

func (c MinorDeviceClass) String() string {
	if name, ok := minorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("MinorDeviceClass(%d)", int(c))
}

const (
	serviceShift = 13
	majorShift   = 8
	majorMask    = 0x1F
	minorShift   = 2
	minorMask    = 0x3F

	uncategorizedCode = 0x1F
)

// Class is the decoded Class of Device
type Class struct {
	Raw            uint32
	ServiceClasses mapset.Set[ServiceClass]
	Major          MajorDeviceClass
	Minor          MinorDeviceClass
}

// Classify splits a Class of Device value into its fields.
// Bits above 23 and bits 0-1 are ignored.
func Classify(bits uint32) Class {
	bits &= 0xFFFFFF

	services := mapset.NewThreadUnsafeSet[ServiceClass]()
	for _, sb := range serviceClassBits {
		if bits&(1<<sb.bit) != 0 {
			services.Add(sb.class)
		}
	}

	major := majorFromCode((bits >> majorShift) & majorMask)
	return Class{
		Raw:            bits,
		ServiceClasses: services,
		Major:          major,
		Minor:          minorFromCode(major, (bits>>minorShift)&minorMask),
	}
}

func majorFromCode(code uint32) MajorDeviceClass {
	switch {
	case code <= uint32(Health):
		return MajorDeviceClass(code)
	case code == uncategorizedCode:
		return Uncategorized
	default:
		return OtherMajor
	}
}

func minorFromCode(major MajorDeviceClass, code uint32) MinorDeviceClass {
	if major != Health {
		return MinorNotSupported
	}
	switch code {
	case 0x00:
		return MinorUndefined
	case 0x01:
		return BloodPressureMonitor
	case 0x02:
		return Thermometer
	case 0x03:
		return WeighingScale
	case 0x04:
		return GlucoseMeter
	case 0x05:
		return PulseOximeter
	case 0x06:
		return HeartRateMonitor
	case 0x07:
		return HealthDataDisplay
	default:
		return MinorOther
	}
}

// HasService reports whether a service class flag is set
func (c Class) HasService(sc ServiceClass) bool {
	return c.ServiceClasses != nil && c.ServiceClasses.Contains(sc)
}

// IsHealthDevice reports whether the device declares itself wearable or health
func (c Class) IsHealthDevice() bool {
	return c.Major == Wearable || c.Major == Health
}

// Services returns the service classes ordered from lowest to highest bit
func (c Class) Services() []ServiceClass {
	if c.ServiceClasses == nil {
		return nil
	}
	out := c.ServiceClasses.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Class) String() string {
	services := c.Services()
	names := make([]string, 0, len(services))
	for _, sc := range services {
		names = append(names, sc.String())
	}
	return fmt.Sprintf("0x%06X major=%s minor=%s services=[%s]", c.Raw, c.Major, c.Minor, strings.Join(names, ", "))
}
