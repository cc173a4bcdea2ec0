// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rclink implements the RC link wire protocol spoken between the
// companion application and the bridge device.
//
// Every packet starts with a two byte type header followed by a fixed layout
// payload and, for most kinds, a trailing additive checksum. This package
// provides the packet catalog, per-kind encoding and decoding, the stream
// decoder that recovers packets from a noisy byte stream, and helpers to
// format, validate and count decoded packets.
package rclink

// Header bytes. The first byte groups packets by direction.
const (
	StateHeader1 = 0xAA
	StateHeader2 = 0x55

	EventHeader1 = 0xBB
	EventHeader2 = 0x66

	TelemetryHeader1 = 0xCC

	PanelHeader2     = 0x11
	IndicatorHeader2 = 0x22
	PlotHeader2      = 0x33
	ConfigHeader2    = 0x44
	InputHeader2     = 0x55
	SensorHeader2    = 0x66
)

// Packet sizes including header and checksum
const (
	HeaderSize = 2

	StatePacketSize     = 18
	EventPacketSize     = 4
	PanelPacketSize     = 8
	IndicatorPacketSize = 5
	PlotPacketSize      = 7
	InputPacketSize     = 14
	SensorPacketSize    = 12

	// ConfigMinSize is the smallest config packet: header plus a zero count
	ConfigMinSize = 3
)

// Input and sensor frame sizes written by the original firmware. Input
// frames stop before the checksum byte and sensor frames carry two bytes past
// the end of the packet. See WithLegacyFrames.
const (
	LegacyInputPacketSize  = 13
	LegacySensorPacketSize = 14
)

// Decoder limits
const (
	// DefaultBufferCapacity matches the receive buffer of the device firmware
	DefaultBufferCapacity = 64

	// MonitorBufferCapacity leaves room for config packets on the peer side
	MonitorBufferCapacity = 256
)

// SwitchLines is the number of switch lines carried in a state packet
const SwitchLines = 8

// Raw analog range of stick and knob axes
const (
	AxisMin = 0
	AxisMax = 4095
)

// Telemetry value ranges produced by the device
const (
	PanelValueMax   = 9999
	IndicatorMax    = 100
	PlotSampleCount = 3
)

// Default status bytes sent by the device
const (
	DefaultPanelStates = 0x07
	DefaultSensorFlags = 0x03
)

// Event identifiers understood by the device outputs
const (
	EventOutput1 = 0x01
	EventOutput2 = 0x02
	EventOutput3 = 0x03
	EventOutput4 = 0x04
)
