// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TextLogger writes every packet in the FormatPacket layout
type TextLogger struct {
	w   io.Writer
	now func() time.Time
}

// NewTextLogger creates a text logger writing to w
func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w, now: time.Now}
}

// Record implements Logger
func (l *TextLogger) Record(p Packet) {
	fmt.Fprint(l.w, FormatPacket(p, l.now()))
}

// ChangeLogger prints only the state fields that changed since the previous
// state packet, plus every event. Stick axes are printed in X/Y pairs.
type ChangeLogger struct {
	w io.Writer

	Sticks   bool
	Knobs    bool
	Switches bool
	Events   bool

	seen bool
	last StatePacket
}

// NewChangeLogger creates a change logger with every group enabled
func NewChangeLogger(w io.Writer) *ChangeLogger {
	return &ChangeLogger{w: w, Sticks: true, Knobs: true, Switches: true, Events: true}
}

// Record implements Logger
func (l *ChangeLogger) Record(p Packet) {
	switch pkt := p.(type) {
	case StatePacket:
		l.recordState(pkt)
	case EventPacket:
		if l.Events {
			fmt.Fprintf(l.w, "Event ID: %d\n", pkt.ID)
		}
	}
}

func (l *ChangeLogger) recordState(s StatePacket) {
	prev := l.last
	first := !l.seen
	l.last = s
	l.seen = true

	if l.Sticks {
		if first || s.LeftStickX != prev.LeftStickX || s.LeftStickY != prev.LeftStickY {
			fmt.Fprintf(l.w, "L Stick X: %d    L Stick Y: %d\n", s.LeftStickX, s.LeftStickY)
		}
		if first || s.RightStickX != prev.RightStickX || s.RightStickY != prev.RightStickY {
			fmt.Fprintf(l.w, "R Stick X: %d    R Stick Y: %d\n", s.RightStickX, s.RightStickY)
		}
	}

	if l.Knobs {
		if first || s.LeftKnob != prev.LeftKnob {
			fmt.Fprintf(l.w, "Left Knob: %d\n", s.LeftKnob)
		}
		if first || s.RightKnob != prev.RightKnob {
			fmt.Fprintf(l.w, "Right Knob: %d\n", s.RightKnob)
		}
	}

	if l.Switches && (first || s.Switches != prev.Switches) {
		fmt.Fprintf(l.w, "Switch Byte: 0x%02X\n", uint8(s.Switches))
		for i := 1; i <= 6; i++ {
			state := "OFF"
			if s.Switches.Line(i) {
				state = "ON"
			}
			fmt.Fprintf(l.w, "  S%d = %s\n", i, state)
		}
	}
}

// JSONLogger writes one JSON object per packet
type JSONLogger struct {
	enc *json.Encoder
	now func() time.Time
}

// PacketRecord is the JSON shape written by JSONLogger
type PacketRecord struct {
	Time   time.Time      `json:"time"`
	Kind   string         `json:"kind"`
	Frame  string         `json:"frame"`
	Fields map[string]any `json:"fields"`
}

// NewJSONLogger creates a JSON lines logger writing to w
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{enc: json.NewEncoder(w), now: time.Now}
}

// Record implements Logger
func (l *JSONLogger) Record(p Packet) {
	_ = l.enc.Encode(NewPacketRecord(p, l.now()))
}

// NewPacketRecord flattens a packet into its JSON shape
func NewPacketRecord(p Packet, ts time.Time) PacketRecord {
	fields := make(map[string]any)
	for _, f := range p.Fields() {
		fields[f.Name] = f.Value
	}
	return PacketRecord{
		Time:   ts,
		Kind:   p.Kind().String(),
		Frame:  FormatHex(p.Encode()),
		Fields: fields,
	}
}

// MultiLogger fans packets out to several loggers
type MultiLogger []Logger

// Record implements Logger
func (m MultiLogger) Record(p Packet) {
	for _, l := range m {
		if l != nil {
			l.Record(p)
		}
	}
}

// LoggerFunc adapts a function to the Logger interface
type LoggerFunc func(p Packet)

// Record implements Logger
func (f LoggerFunc) Record(p Packet) { f(p) }
