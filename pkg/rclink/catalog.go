// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import "fmt"

// Kind identifies a packet type on the wire
type Kind int

// Packet kinds
const (
	KindUnknown Kind = iota
	KindState
	KindEvent
	KindPanel
	KindIndicator
	KindPlot
	KindConfig
	KindInput
	KindSensor
)

// Direction tells which side of the link sends a packet kind
type Direction int

const (
	// Inbound packets travel from the application to the device
	Inbound Direction = iota
	// Outbound packets travel from the device to the application
	Outbound
)

// KindSpec describes the wire layout of a packet kind
type KindSpec struct {
	Kind      Kind
	Name      string
	Header    [HeaderSize]byte
	Size      int // 0 for variable length
	Direction Direction
	Checksum  bool
}

// ChecksumOffset returns the offset of the checksum byte in a frame of the
// given size, or -1 if the kind carries no checksum.
func (s KindSpec) ChecksumOffset() int {
	if !s.Checksum {
		return -1
	}
	if s.Kind == KindState {
		// State packets end with two trailer bytes after the checksum
		return s.Size - 3
	}
	return s.Size - 1
}

var catalog = []KindSpec{
	{KindState, "STATE", [2]byte{StateHeader1, StateHeader2}, StatePacketSize, Inbound, true},
	{KindEvent, "EVENT", [2]byte{EventHeader1, EventHeader2}, EventPacketSize, Inbound, true},
	{KindPanel, "PANEL", [2]byte{TelemetryHeader1, PanelHeader2}, PanelPacketSize, Outbound, true},
	{KindIndicator, "INDICATOR", [2]byte{TelemetryHeader1, IndicatorHeader2}, IndicatorPacketSize, Outbound, true},
	{KindPlot, "PLOT", [2]byte{TelemetryHeader1, PlotHeader2}, PlotPacketSize, Outbound, true},
	{KindConfig, "CONFIG", [2]byte{TelemetryHeader1, ConfigHeader2}, 0, Outbound, false},
	{KindInput, "INPUT", [2]byte{TelemetryHeader1, InputHeader2}, InputPacketSize, Outbound, true},
	{KindSensor, "SENSOR", [2]byte{TelemetryHeader1, SensorHeader2}, SensorPacketSize, Outbound, true},
}

// InboundKinds are the kinds the device decodes
var InboundKinds = []Kind{KindState, KindEvent}

// OutboundKinds are the kinds the application decodes
var OutboundKinds = []Kind{KindPanel, KindIndicator, KindPlot, KindConfig, KindInput, KindSensor}

// Spec returns the layout for a kind
func Spec(k Kind) (KindSpec, bool) {
	for _, s := range catalog {
		if s.Kind == k {
			return s, true
		}
	}
	return KindSpec{}, false
}

// Specs returns a copy of the full catalog
func Specs() []KindSpec {
	out := make([]KindSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds the kind for a header byte pair
func Lookup(h1, h2 byte) (Kind, bool) {
	for _, s := range catalog {
		if s.Header[0] == h1 && s.Header[1] == h2 {
			return s.Kind, true
		}
	}
	return KindUnknown, false
}

// String implements fmt.Stringer
func (k Kind) String() string {
	if s, ok := Spec(k); ok {
		return s.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// FrameSize returns the total size of the frame of kind k that starts at
// buf[0]. For fixed kinds the size is known up front. For config packets the
// size is only known once the count and every length byte are buffered; ok is
// false until then.
func FrameSize(k Kind, buf []byte) (size int, ok bool) {
	s, found := Spec(k)
	if !found {
		return 0, false
	}
	if s.Size > 0 {
		return s.Size, true
	}
	return configFrameSize(buf)
}

func configFrameSize(buf []byte) (int, bool) {
	if len(buf) < ConfigMinSize {
		return 0, false
	}
	count := int(buf[2])
	off := ConfigMinSize
	for i := 0; i < count; i++ {
		if off >= len(buf) {
			return 0, false
		}
		off += 1 + int(buf[off])
	}
	return off, true
}
