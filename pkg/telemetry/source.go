// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// Pin identifies a device input line by its GPIO number
type Pin int

// Analog inputs
const (
	PinA32 Pin = 32
	PinA34 Pin = 34
	PinA35 Pin = 35
	PinA36 Pin = 36
	PinA39 Pin = 39
)

// Digital inputs, wired active-low with pull-ups
const (
	PinD0  Pin = 0
	PinD16 Pin = 16
	PinD17 Pin = 17
)

// AnalogPins lists the analog inputs reported in input telemetry, in wire order
var AnalogPins = [4]Pin{PinA34, PinA35, PinA36, PinA39}

// DigitalPins lists the digital inputs reported in input telemetry, in wire order
var DigitalPins = [3]Pin{PinD0, PinD16, PinD17}

// SensorSource provides raw sensor readings. Reads must not block.
type SensorSource interface {
	// Analog returns the 12-bit reading of an analog pin
	Analog(pin Pin) uint16
	// Digital reports whether a digital input is active
	Digital(pin Pin) bool
	// Temperature returns the raw temperature register
	Temperature() uint16
	// Acceleration returns the raw accelerometer axes
	Acceleration() (x, y, z int16)
}

// Sender carries encoded telemetry to the application
type Sender interface {
	Connected() bool
	Write(p []byte) (int, error)
}
