// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"encoding/binary"
	"fmt"
)

// Packet is a decoded or ready-to-encode packet record
type Packet interface {
	Kind() Kind
	// Encode returns the complete wire frame including header and checksum
	Encode() []byte
	// Fields lists the payload values in wire order for loggers
	Fields() []Field
}

// Field is a named payload value
type Field struct {
	Name  string
	Value any
}

// Switches is the state packet switch bitfield. Bit i carries line i+1.
type Switches uint8

// Line reports whether switch line n (1-8) is on
func (s Switches) Line(n int) bool {
	if n < 1 || n > SwitchLines {
		return false
	}
	return s&(1<<(n-1)) != 0
}

// With returns a copy with switch line n (1-8) set to on
func (s Switches) With(n int, on bool) Switches {
	if n < 1 || n > SwitchLines {
		return s
	}
	if on {
		return s | 1<<(n-1)
	}
	return s &^ (1 << (n - 1))
}

// StatePacket carries the stick, knob and switch state of the application
type StatePacket struct {
	LeftStickX  uint16
	LeftStickY  uint16
	RightStickX uint16
	RightStickY uint16
	LeftKnob    uint16
	RightKnob   uint16
	Switches    Switches
	Trailer     [2]byte
}

// EventPacket carries a single button event
type EventPacket struct {
	ID uint8
}

// PanelPacket carries the two panel display values
type PanelPacket struct {
	Left   uint16
	Right  uint16
	States uint8
}

// IndicatorPacket carries the analog gauge and battery level in percent
type IndicatorPacket struct {
	Analog  uint8
	Battery uint8
}

// PlotPacket carries up to three plot samples
type PlotPacket struct {
	Count   uint8
	Samples [PlotSampleCount]uint8
}

// ConfigPacket names the plot channels shown by the application
type ConfigPacket struct {
	Names []string
}

// InputPacket carries raw analog and digital input readings.
//
// The frame is 14 bytes with a trailing checksum. The original firmware only
// writes the first 13 bytes, so its input frames need a decoder built
// WithLegacyFrames.
type InputPacket struct {
	Analog  [4]uint16
	Digital [3]uint8
}

// SensorPacket carries temperature and accelerometer readings.
//
// The frame is 12 bytes with a trailing checksum. The original firmware
// writes 14 bytes with a checksum that covers the two extra bytes, so its
// sensor frames need a decoder built WithLegacyFrames.
type SensorPacket struct {
	Temperature uint16
	AccelX      int16
	AccelY      int16
	AccelZ      int16
	Flags       uint8
}

var le = binary.LittleEndian

// newFrame allocates a frame for a fixed size kind with its header filled in
func newFrame(k Kind) (KindSpec, []byte) {
	s, _ := Spec(k)
	frame := make([]byte, s.Size)
	frame[0], frame[1] = s.Header[0], s.Header[1]
	return s, frame
}

// checkFrame validates length, header and checksum of a fixed size frame
func checkFrame(k Kind, frame []byte) error {
	s, ok := Spec(k)
	if !ok {
		return ErrUnknownKind
	}
	if len(frame) < HeaderSize {
		return fmt.Errorf("%s: %w (%d bytes)", k, ErrShortFrame, len(frame))
	}
	if frame[0] != s.Header[0] || frame[1] != s.Header[1] {
		return fmt.Errorf("%s: %w 0x%02X 0x%02X", k, ErrBadHeader, frame[0], frame[1])
	}
	if s.Size > 0 && len(frame) < s.Size {
		return fmt.Errorf("%s: %w (%d of %d bytes)", k, ErrShortFrame, len(frame), s.Size)
	}
	return VerifyChecksum(k, frame)
}

// Kind implements Packet
func (p StatePacket) Kind() Kind { return KindState }

// Encode implements Packet
func (p StatePacket) Encode() []byte {
	s, f := newFrame(KindState)
	le.PutUint16(f[2:], p.LeftStickX)
	le.PutUint16(f[4:], p.LeftStickY)
	le.PutUint16(f[6:], p.RightStickX)
	le.PutUint16(f[8:], p.RightStickY)
	le.PutUint16(f[10:], p.LeftKnob)
	le.PutUint16(f[12:], p.RightKnob)
	f[14] = byte(p.Switches)
	f[16], f[17] = p.Trailer[0], p.Trailer[1]
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p StatePacket) Fields() []Field {
	return []Field{
		{"left_stick_x", p.LeftStickX},
		{"left_stick_y", p.LeftStickY},
		{"right_stick_x", p.RightStickX},
		{"right_stick_y", p.RightStickY},
		{"left_knob", p.LeftKnob},
		{"right_knob", p.RightKnob},
		{"switches", uint8(p.Switches)},
	}
}

// DecodeState decodes a state frame
func DecodeState(frame []byte) (StatePacket, error) {
	if err := checkFrame(KindState, frame); err != nil {
		return StatePacket{}, err
	}
	return StatePacket{
		LeftStickX:  le.Uint16(frame[2:]),
		LeftStickY:  le.Uint16(frame[4:]),
		RightStickX: le.Uint16(frame[6:]),
		RightStickY: le.Uint16(frame[8:]),
		LeftKnob:    le.Uint16(frame[10:]),
		RightKnob:   le.Uint16(frame[12:]),
		Switches:    Switches(frame[14]),
		Trailer:     [2]byte{frame[16], frame[17]},
	}, nil
}

// Kind implements Packet
func (p EventPacket) Kind() Kind { return KindEvent }

// Encode implements Packet
func (p EventPacket) Encode() []byte {
	s, f := newFrame(KindEvent)
	f[2] = p.ID
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p EventPacket) Fields() []Field {
	return []Field{{"event_id", p.ID}}
}

// DecodeEvent decodes an event frame
func DecodeEvent(frame []byte) (EventPacket, error) {
	if err := checkFrame(KindEvent, frame); err != nil {
		return EventPacket{}, err
	}
	return EventPacket{ID: frame[2]}, nil
}

// Kind implements Packet
func (p PanelPacket) Kind() Kind { return KindPanel }

// Encode implements Packet
func (p PanelPacket) Encode() []byte {
	s, f := newFrame(KindPanel)
	le.PutUint16(f[2:], p.Left)
	le.PutUint16(f[4:], p.Right)
	f[6] = p.States
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p PanelPacket) Fields() []Field {
	return []Field{{"left", p.Left}, {"right", p.Right}, {"states", p.States}}
}

// DecodePanel decodes a panel frame
func DecodePanel(frame []byte) (PanelPacket, error) {
	if err := checkFrame(KindPanel, frame); err != nil {
		return PanelPacket{}, err
	}
	return PanelPacket{Left: le.Uint16(frame[2:]), Right: le.Uint16(frame[4:]), States: frame[6]}, nil
}

// Kind implements Packet
func (p IndicatorPacket) Kind() Kind { return KindIndicator }

// Encode implements Packet
func (p IndicatorPacket) Encode() []byte {
	s, f := newFrame(KindIndicator)
	f[2], f[3] = p.Analog, p.Battery
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p IndicatorPacket) Fields() []Field {
	return []Field{{"analog", p.Analog}, {"battery", p.Battery}}
}

// DecodeIndicator decodes an indicator frame
func DecodeIndicator(frame []byte) (IndicatorPacket, error) {
	if err := checkFrame(KindIndicator, frame); err != nil {
		return IndicatorPacket{}, err
	}
	return IndicatorPacket{Analog: frame[2], Battery: frame[3]}, nil
}

// Kind implements Packet
func (p PlotPacket) Kind() Kind { return KindPlot }

// Encode implements Packet
func (p PlotPacket) Encode() []byte {
	s, f := newFrame(KindPlot)
	f[2] = p.Count
	copy(f[3:6], p.Samples[:])
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p PlotPacket) Fields() []Field {
	return []Field{
		{"count", p.Count},
		{"sample_1", p.Samples[0]},
		{"sample_2", p.Samples[1]},
		{"sample_3", p.Samples[2]},
	}
}

// DecodePlot decodes a plot frame
func DecodePlot(frame []byte) (PlotPacket, error) {
	if err := checkFrame(KindPlot, frame); err != nil {
		return PlotPacket{}, err
	}
	p := PlotPacket{Count: frame[2]}
	copy(p.Samples[:], frame[3:6])
	return p, nil
}

// Kind implements Packet
func (p ConfigPacket) Kind() Kind { return KindConfig }

// Encode implements Packet. At most 255 names of at most 255 bytes each fit
// the length prefixed layout; anything beyond is dropped.
func (p ConfigPacket) Encode() []byte {
	names := p.Names
	if len(names) > 0xFF {
		names = names[:0xFF]
	}
	f := []byte{TelemetryHeader1, ConfigHeader2, byte(len(names))}
	for _, name := range names {
		if len(name) > 0xFF {
			name = name[:0xFF]
		}
		f = append(f, byte(len(name)))
		f = append(f, name...)
	}
	return f
}

// Fields implements Packet
func (p ConfigPacket) Fields() []Field {
	fields := []Field{{"count", len(p.Names)}}
	for i, name := range p.Names {
		fields = append(fields, Field{fmt.Sprintf("name_%d", i+1), name})
	}
	return fields
}

// DecodeConfig decodes a config frame
func DecodeConfig(frame []byte) (ConfigPacket, error) {
	if err := checkFrame(KindConfig, frame); err != nil {
		return ConfigPacket{}, err
	}
	size, ok := configFrameSize(frame)
	if !ok || size > len(frame) {
		return ConfigPacket{}, fmt.Errorf("%s: %w", KindConfig, ErrShortFrame)
	}
	count := int(frame[2])
	names := make([]string, 0, count)
	off := ConfigMinSize
	for i := 0; i < count; i++ {
		n := int(frame[off])
		names = append(names, string(frame[off+1:off+1+n]))
		off += 1 + n
	}
	return ConfigPacket{Names: names}, nil
}

// Kind implements Packet
func (p InputPacket) Kind() Kind { return KindInput }

// Encode implements Packet
func (p InputPacket) Encode() []byte {
	s, f := newFrame(KindInput)
	for i, v := range p.Analog {
		le.PutUint16(f[2+2*i:], v)
	}
	copy(f[10:13], p.Digital[:])
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p InputPacket) Fields() []Field {
	return []Field{
		{"a34", p.Analog[0]},
		{"a35", p.Analog[1]},
		{"a36", p.Analog[2]},
		{"a39", p.Analog[3]},
		{"d0", p.Digital[0]},
		{"d16", p.Digital[1]},
		{"d17", p.Digital[2]},
	}
}

// DecodeInput decodes an input telemetry frame
func DecodeInput(frame []byte) (InputPacket, error) {
	if err := checkFrame(KindInput, frame); err != nil {
		return InputPacket{}, err
	}
	var p InputPacket
	for i := range p.Analog {
		p.Analog[i] = le.Uint16(frame[2+2*i:])
	}
	copy(p.Digital[:], frame[10:13])
	return p, nil
}

// Kind implements Packet
func (p SensorPacket) Kind() Kind { return KindSensor }

// Encode implements Packet
func (p SensorPacket) Encode() []byte {
	s, f := newFrame(KindSensor)
	le.PutUint16(f[2:], p.Temperature)
	le.PutUint16(f[4:], uint16(p.AccelX))
	le.PutUint16(f[6:], uint16(p.AccelY))
	le.PutUint16(f[8:], uint16(p.AccelZ))
	f[10] = p.Flags
	return sealChecksum(s, f)
}

// Fields implements Packet
func (p SensorPacket) Fields() []Field {
	return []Field{
		{"temperature", p.Temperature},
		{"accel_x", p.AccelX},
		{"accel_y", p.AccelY},
		{"accel_z", p.AccelZ},
		{"flags", p.Flags},
	}
}

// DecodeSensor decodes a sensor telemetry frame
func DecodeSensor(frame []byte) (SensorPacket, error) {
	if err := checkFrame(KindSensor, frame); err != nil {
		return SensorPacket{}, err
	}
	return SensorPacket{
		Temperature: le.Uint16(frame[2:]),
		AccelX:      int16(le.Uint16(frame[4:])),
		AccelY:      int16(le.Uint16(frame[6:])),
		AccelZ:      int16(le.Uint16(frame[8:])),
		Flags:       frame[10],
	}, nil
}

// checkLegacyFrame validates length and header of a frame that carries no
// usable checksum
func checkLegacyFrame(k Kind, frame []byte, size int) error {
	s, ok := Spec(k)
	if !ok {
		return ErrUnknownKind
	}
	if len(frame) < size {
		return fmt.Errorf("%s: %w (%d of %d bytes)", k, ErrShortFrame, len(frame), size)
	}
	if frame[0] != s.Header[0] || frame[1] != s.Header[1] {
		return fmt.Errorf("%s: %w 0x%02X 0x%02X", k, ErrBadHeader, frame[0], frame[1])
	}
	return nil
}

// DecodeLegacyInput decodes a 13 byte input frame as written by the original
// firmware. The frame ends with the last digital reading and has no checksum.
func DecodeLegacyInput(frame []byte) (InputPacket, error) {
	if err := checkLegacyFrame(KindInput, frame, LegacyInputPacketSize); err != nil {
		return InputPacket{}, err
	}
	var p InputPacket
	for i := range p.Analog {
		p.Analog[i] = le.Uint16(frame[2+2*i:])
	}
	copy(p.Digital[:], frame[10:13])
	return p, nil
}

// DecodeLegacySensor decodes a 14 byte sensor frame as written by the
// original firmware. Its checksum sums bytes past the packet and is not
// verified.
func DecodeLegacySensor(frame []byte) (SensorPacket, error) {
	if err := checkLegacyFrame(KindSensor, frame, LegacySensorPacketSize); err != nil {
		return SensorPacket{}, err
	}
	return SensorPacket{
		Temperature: le.Uint16(frame[2:]),
		AccelX:      int16(le.Uint16(frame[4:])),
		AccelY:      int16(le.Uint16(frame[6:])),
		AccelZ:      int16(le.Uint16(frame[8:])),
		Flags:       frame[10],
	}, nil
}

// Decode decodes any cataloged frame based on its header
func Decode(frame []byte) (Packet, error) {
	if len(frame) < HeaderSize {
		return nil, ErrShortFrame
	}
	k, ok := Lookup(frame[0], frame[1])
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X 0x%02X", ErrUnknownKind, frame[0], frame[1])
	}
	return DecodeKind(k, frame)
}

// DecodeKind decodes a frame of a known kind
func DecodeKind(k Kind, frame []byte) (Packet, error) {
	switch k {
	case KindState:
		return DecodeState(frame)
	case KindEvent:
		return DecodeEvent(frame)
	case KindPanel:
		return DecodePanel(frame)
	case KindIndicator:
		return DecodeIndicator(frame)
	case KindPlot:
		return DecodePlot(frame)
	case KindConfig:
		return DecodeConfig(frame)
	case KindInput:
		return DecodeInput(frame)
	case KindSensor:
		return DecodeSensor(frame)
	default:
		return nil, ErrUnknownKind
	}
}
