package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/device"
)

var propertyMap = []struct {
	ble ble.Property
	dev device.Property
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteNR},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
	{ble.CharSignedWrite, device.PropSignedWrite},
	{ble.CharExtended, device.PropExtended},
}

// NewProperties converts ble.Property bit flags into a device.Property set.
func NewProperties(p ble.Property) device.Property {
	var out device.Property
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			out |= m.dev
		}
	}
	return out
}

// newServices converts a discovered go-ble profile into sorted service snapshots
func newServices(profile *ble.Profile) []device.Service {
	if profile == nil {
		return nil
	}
	services := make([]device.Service, 0, len(profile.Services))
	for _, bleSvc := range profile.Services {
		svc := device.Service{UUID: device.NormalizeUUID(bleSvc.UUID.String())}
		for _, bleChar := range bleSvc.Characteristics {
			svc.Characteristics = append(svc.Characteristics, device.Characteristic{
				UUID:       device.NormalizeUUID(bleChar.UUID.String()),
				Properties: NewProperties(bleChar.Property),
			})
		}
		services = append(services, svc)
	}
	device.SortServices(services)
	return services
}

// findCharacteristic looks up the live go-ble characteristic behind char
func findCharacteristic(profile *ble.Profile, char device.Characteristic) *ble.Characteristic {
	if profile == nil {
		return nil
	}
	for _, bleSvc := range profile.Services {
		for _, bleChar := range bleSvc.Characteristics {
			if device.EqualUUID(bleChar.UUID.String(), char.UUID) {
				return bleChar
			}
		}
	}
	return nil
}
