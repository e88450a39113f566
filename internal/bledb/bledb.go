// Package bledb resolves Bluetooth SIG assigned numbers to their names.
// Only the entries a heart rate monitor is likely to expose are carried.
package bledb

import "github.com/srg/hrmon/internal/device"

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1814": "Running Speed and Cadence",
	"1816": "Cycling Speed and Cadence",
	"1818": "Cycling Power",
	"1826": "Fitness Machine",
	"fe59": "Nordic DFU",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a19": "Battery Level",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a27": "Hardware Revision String",
	"2a28": "Software Revision String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
	"2a38": "Body Sensor Location",
	"2a39": "Heart Rate Control Point",
	"2a53": "RSC Measurement",
	"2a5b": "CSC Measurement",
}

// LookupService returns the service name, or "" when unknown
func LookupService(uuid string) string {
	return services[device.NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the characteristic name, or "" when unknown
func LookupCharacteristic(uuid string) string {
	return characteristics[device.NormalizeUUID(uuid)]
}

// ServiceLabel returns the service name when known, the normalized UUID otherwise
func ServiceLabel(uuid string) string {
	if name := LookupService(uuid); name != "" {
		return name
	}
	return device.NormalizeUUID(uuid)
}
