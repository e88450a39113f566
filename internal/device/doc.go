// Package device defines the Bluetooth Low Energy capabilities the rest of
// hrmon consumes from a platform stack.
//
// The package provides:
//   - Adapter and Peripheral interfaces (scan, connect, GATT discovery, subscribe)
//   - The adapter-wide Connected/Disconnected event stream
//   - Read-only Service and Characteristic snapshots with property bit flags
//   - UUID normalization for 16-bit and Bluetooth SIG based 128-bit UUIDs
//   - Structured connection and transport errors
//
// A concrete implementation backed by go-ble lives in the go-ble subpackage.
package device
