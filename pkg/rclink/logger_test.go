// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	states []StatePacket
	events []uint8
	logged []Packet
}

func (r *recordingSink) ApplyState(p StatePacket) { r.states = append(r.states, p) }
func (r *recordingSink) HandleEvent(id uint8)     { r.events = append(r.events, id) }
func (r *recordingSink) Record(p Packet)          { r.logged = append(r.logged, p) }

// ============================================================
// Dispatcher Tests
// ============================================================

func TestDispatcher_Routes(t *testing.T) {
	sink := &recordingSink{}
	d := &Dispatcher{Actuation: sink, Events: sink, Logger: sink}

	dec := NewDecoder()
	state := StatePacket{LeftStickX: 99}
	dec.Feed(concat(state.Encode(), EventPacket{ID: 2}.Encode()), d)

	require.Equal(t, []StatePacket{state}, sink.states)
	require.Equal(t, []uint8{2}, sink.events)
	require.Len(t, sink.logged, 2)
}

func TestDispatcher_NilCollaborators(t *testing.T) {
	d := &Dispatcher{}
	d.HandlePacket(StatePacket{})
	d.HandlePacket(EventPacket{ID: 1})
}

// ============================================================
// Logger Tests
// ============================================================

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf)
	l.now = func() time.Time { return time.Date(2025, 1, 1, 12, 30, 45, 123e6, time.UTC) }

	l.Record(EventPacket{ID: 3})
	require.Equal(t, "[12:30:45.123] EVENT (0xBB66) len=4\n  Event: 3\n", buf.String())
}

func TestChangeLogger_OnlyChanges(t *testing.T) {
	var buf bytes.Buffer
	l := NewChangeLogger(&buf)

	s := StatePacket{LeftStickX: 10, LeftStickY: 20}
	l.Record(s)
	require.Contains(t, buf.String(), "L Stick X: 10    L Stick Y: 20")
	require.Contains(t, buf.String(), "Switch Byte: 0x00")

	buf.Reset()
	l.Record(s)
	require.Empty(t, buf.String())

	s.RightKnob = 7
	s.Switches = s.Switches.With(2, true)
	l.Record(s)
	out := buf.String()
	require.Contains(t, out, "Right Knob: 7")
	require.Contains(t, out, "  S2 = ON")
	require.NotContains(t, out, "L Stick")
	require.NotContains(t, out, "Left Knob")
}

func TestChangeLogger_GroupsDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := &ChangeLogger{w: &buf, Knobs: true}
	l.Record(StatePacket{LeftKnob: 1})
	l.Record(EventPacket{ID: 1})
	require.Equal(t, "Left Knob: 1\nRight Knob: 0\n", buf.String())
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)
	l.Record(PanelPacket{Left: 5, Right: 6, States: 7})

	var rec struct {
		Kind   string         `json:"kind"`
		Frame  string         `json:"frame"`
		Fields map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "PANEL", rec.Kind)
	require.True(t, strings.HasPrefix(rec.Frame, "CC 11 05 00 06 00 07"))
	require.Equal(t, float64(5), rec.Fields["left"])
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	MultiLogger{a, nil, b}.Record(EventPacket{ID: 1})
	require.Len(t, a.logged, 1)
	require.Len(t, b.logged, 1)
}

// ============================================================
// Validator and Statistics Tests
// ============================================================

func TestValidatePacket(t *testing.T) {
	require.Empty(t, ValidatePacket(StatePacket{LeftStickX: AxisMax}))
	require.Len(t, ValidatePacket(StatePacket{LeftStickX: AxisMax + 1, RightKnob: 0xFFFF}), 2)

	errs := ValidatePacket(EventPacket{ID: 9})
	require.Len(t, errs, 1)
	require.Equal(t, AnomalyUnknownEvent, errs[0].Type)

	require.Empty(t, ValidatePacket(PanelPacket{Left: PanelValueMax}))
	require.Len(t, ValidatePacket(PanelPacket{Right: PanelValueMax + 1}), 1)
	require.Len(t, ValidatePacket(IndicatorPacket{Battery: 101}), 1)
	require.Len(t, ValidatePacket(PlotPacket{Count: 2}), 1)
	require.Len(t, ValidatePacket(ConfigPacket{Names: []string{"ok", ""}}), 1)
	require.Len(t, ValidatePacket(InputPacket{Digital: [3]uint8{0, 2, 1}}), 1)
	require.Empty(t, ValidatePacket(SensorPacket{}))
}

func TestValidatePacket_EveryAnomalyProduced(t *testing.T) {
	samples := map[AnomalyType]Packet{
		AnomalyAxisRange:      StatePacket{LeftKnob: AxisMax + 1},
		AnomalyUnknownEvent:   EventPacket{ID: 0},
		AnomalyPanelRange:     PanelPacket{Left: PanelValueMax + 1},
		AnomalyIndicatorRange: IndicatorPacket{Analog: IndicatorMax + 1},
		AnomalyPlotCount:      PlotPacket{Count: 4},
		AnomalyConfigName:     ConfigPacket{Names: []string{""}},
		AnomalyInputRange:     InputPacket{Analog: [4]uint16{0, 0, 0, AxisMax + 1}},
	}

	for a := AnomalyAxisRange; a.String() != "UNKNOWN"; a++ {
		p, ok := samples[a]
		require.True(t, ok, "no packet produces %s", a)
		errs := ValidatePacket(p)
		require.Len(t, errs, 1, a.String())
		require.Equal(t, a, errs[0].Type)
	}
	require.Equal(t, "UNKNOWN", (AnomalyInputRange + 1).String())
}

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	s.Update(EventPacket{ID: 1}, nil, nil)
	s.Update(StatePacket{}, nil, nil)
	s.Update(EventPacket{ID: 9}, nil, ValidatePacket(EventPacket{ID: 9}))
	s.Update(nil, &ChecksumError{Kind: KindEvent}, nil)
	s.Update(nil, errors.New("boom"), nil)
	s.AddEvicted(12)

	require.Equal(t, uint64(5), s.TotalPackets)
	require.Equal(t, uint64(2), s.ValidPackets)
	require.Equal(t, uint64(1), s.AnomalousValues)
	require.Equal(t, uint64(1), s.ChecksumErrors)
	require.Equal(t, uint64(1), s.DecodeErrors)
	require.Equal(t, uint64(2), s.PerKind[KindEvent])
	require.Equal(t, uint64(12), s.EvictedBytes)

	out := s.String()
	require.Contains(t, out, "Checksum Errors:")
	require.Contains(t, out, "EVENT:")

	s.Reset()
	require.Equal(t, uint64(0), s.TotalPackets)
	require.NotNil(t, s.PerKind)
}

func TestFormatUptime(t *testing.T) {
	require.Equal(t, "0 seconds", FormatUptime(0))
	require.Equal(t, "1 second", FormatUptime(time.Second))
	require.Equal(t, "1 hour and 5 seconds", FormatUptime(time.Hour+5*time.Second))
	require.Equal(t, "2 hours, 1 minute and 3 seconds", FormatUptime(2*time.Hour+time.Minute+3*time.Second))
}
