package device

import (
	"sort"
	"strings"
)

// ----------------------------
// GATT Service / Characteristic
// ----------------------------

// Property is a bit set of GATT characteristic properties.
// Values follow the Characteristic Properties field of the Core Specification.
type Property uint8

const (
	PropBroadcast   Property = 0x01
	PropRead        Property = 0x02
	PropWriteNR     Property = 0x04
	PropWrite       Property = 0x08
	PropNotify      Property = 0x10
	PropIndicate    Property = 0x20
	PropSignedWrite Property = 0x40
	PropExtended    Property = 0x80
)

var propertyNames = []struct {
	prop Property
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteNR, "write-without-response"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
	{PropSignedWrite, "signed-write"},
	{PropExtended, "extended"},
}

// Has reports whether all bits of p2 are set in p
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

func (p Property) String() string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.prop) {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseProperties converts a comma-separated list like "read,notify" into a Property set.
// Unknown names are ignored.
func ParseProperties(s string) Property {
	var p Property
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		for _, pn := range propertyNames {
			if pn.name == part {
				p |= pn.prop
			}
		}
	}
	return p
}

// Characteristic is a read-only snapshot of a GATT characteristic
type Characteristic struct {
	UUID       string // normalized
	Properties Property
}

// Service is a read-only snapshot of a GATT service and its characteristics.
// It is valid only for the lifetime of the connection that produced it.
type Service struct {
	UUID            string // normalized
	Characteristics []Characteristic
}

// FindService returns the service with the given UUID, comparing normalized forms
func FindService(services []Service, uuid string) (Service, bool) {
	want := NormalizeUUID(uuid)
	for _, svc := range services {
		if NormalizeUUID(svc.UUID) == want {
			return svc, true
		}
	}
	return Service{}, false
}

// FindCharacteristic returns the first characteristic with the given UUID that carries all props
func (s Service) FindCharacteristic(uuid string, props Property) (Characteristic, bool) {
	want := NormalizeUUID(uuid)
	for _, char := range s.Characteristics {
		if NormalizeUUID(char.UUID) == want && char.Properties.Has(props) {
			return char, true
		}
	}
	return Characteristic{}, false
}

// SortServices orders services and their characteristics by UUID for deterministic output
func SortServices(services []Service) {
	sort.Slice(services, func(i, j int) bool {
		return services[i].UUID < services[j].UUID
	})
	for _, svc := range services {
		sort.Slice(svc.Characteristics, func(i, j int) bool {
			return svc.Characteristics[i].UUID < svc.Characteristics[j].UUID
		})
	}
}
