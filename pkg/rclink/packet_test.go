// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Catalog Tests
// ============================================================

func TestLookup(t *testing.T) {
	tests := []struct {
		h1, h2 byte
		want   Kind
	}{
		{0xAA, 0x55, KindState},
		{0xBB, 0x66, KindEvent},
		{0xCC, 0x11, KindPanel},
		{0xCC, 0x22, KindIndicator},
		{0xCC, 0x33, KindPlot},
		{0xCC, 0x44, KindConfig},
		{0xCC, 0x55, KindInput},
		{0xCC, 0x66, KindSensor},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			k, ok := Lookup(tt.h1, tt.h2)
			require.True(t, ok)
			require.Equal(t, tt.want, k)
		})
	}

	_, ok := Lookup(0xAA, 0x66)
	require.False(t, ok)
}

func TestSpecs_SizesMatchLayouts(t *testing.T) {
	sizes := map[Kind]int{
		KindState:     18,
		KindEvent:     4,
		KindPanel:     8,
		KindIndicator: 5,
		KindPlot:      7,
		KindConfig:    0,
		KindInput:     14,
		KindSensor:    12,
	}
	for _, s := range Specs() {
		require.Equal(t, sizes[s.Kind], s.Size, s.Name)
	}
}

func TestChecksumOffset(t *testing.T) {
	state, _ := Spec(KindState)
	require.Equal(t, 15, state.ChecksumOffset())

	event, _ := Spec(KindEvent)
	require.Equal(t, 3, event.ChecksumOffset())

	config, _ := Spec(KindConfig)
	require.Equal(t, -1, config.ChecksumOffset())
}

func TestFrameSize_Config(t *testing.T) {
	frame := ConfigPacket{Names: []string{"Volts", "Amps"}}.Encode()
	require.Len(t, frame, 3+1+5+1+4)

	size, ok := FrameSize(KindConfig, frame)
	require.True(t, ok)
	require.Equal(t, len(frame), size)

	// Length of the second name not buffered yet
	_, ok = FrameSize(KindConfig, frame[:9])
	require.False(t, ok)

	// Second length byte buffered, name bytes still missing
	size, ok = FrameSize(KindConfig, frame[:10])
	require.True(t, ok)
	require.Equal(t, len(frame), size)

	_, ok = FrameSize(KindConfig, frame[:2])
	require.False(t, ok)
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0), Checksum(nil))
	require.Equal(t, byte(0x06), Checksum([]byte{1, 2, 3}))
	// Sum wraps at 8 bits
	require.Equal(t, byte(0x01), Checksum([]byte{0xFF, 0x02}))
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	frame := []byte{0xBB, 0x66, 0x01, 0x02}
	err := VerifyChecksum(KindEvent, frame)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrChecksum))

	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, byte(0x01), ce.Expected)
	require.Equal(t, byte(0x02), ce.Received)
}

func TestVerifyChecksum_StateIgnoresTrailer(t *testing.T) {
	frame := StatePacket{LeftStickX: 100}.Encode()
	frame[16], frame[17] = 0xDE, 0xAD
	require.NoError(t, VerifyChecksum(KindState, frame))
}

// ============================================================
// Encoding Tests
// ============================================================

func TestEventPacket_Encode(t *testing.T) {
	require.Equal(t, []byte{0xBB, 0x66, 0x03, 0x03}, EventPacket{ID: 3}.Encode())
}

func TestPanelPacket_Encode(t *testing.T) {
	frame := PanelPacket{Left: 1234, Right: 9999, States: DefaultPanelStates}.Encode()
	require.Equal(t, []byte{0xCC, 0x11, 0xD2, 0x04, 0x0F, 0x27, 0x07, 0x13}, frame)
}

func TestStatePacket_EncodeLayout(t *testing.T) {
	p := StatePacket{
		LeftStickX:  0x0800,
		LeftStickY:  0x0102,
		RightStickX: 0x0FFF,
		RightStickY: 0,
		LeftKnob:    0x0A0B,
		RightKnob:   0x0C0D,
		Switches:    Switches(0).With(1, true).With(3, true),
		Trailer:     [2]byte{0x0D, 0x0A},
	}
	frame := p.Encode()

	require.Len(t, frame, StatePacketSize)
	require.Equal(t, []byte{0xAA, 0x55}, frame[:2])
	require.Equal(t, []byte{0x00, 0x08}, frame[2:4], "little-endian LX")
	require.Equal(t, []byte{0x02, 0x01}, frame[4:6])
	require.Equal(t, []byte{0xFF, 0x0F}, frame[6:8])
	require.Equal(t, byte(0x05), frame[14])
	require.Equal(t, Checksum(frame[2:15]), frame[15])
	require.Equal(t, []byte{0x0D, 0x0A}, frame[16:18])
}

func TestSwitches(t *testing.T) {
	var s Switches
	s = s.With(1, true).With(8, true)
	require.True(t, s.Line(1))
	require.True(t, s.Line(8))
	require.False(t, s.Line(2))
	require.Equal(t, Switches(0x81), s)

	s = s.With(1, false)
	require.False(t, s.Line(1))

	// Out of range lines are ignored
	require.Equal(t, s, s.With(0, true).With(9, true))
	require.False(t, s.Line(9))
}

func TestConfigPacket_Encode(t *testing.T) {
	frame := ConfigPacket{Names: []string{"Volts", "Amps", "RPMs"}}.Encode()
	want := []byte{0xCC, 0x44, 0x03, 5, 'V', 'o', 'l', 't', 's', 4, 'A', 'm', 'p', 's', 4, 'R', 'P', 'M', 's'}
	require.Equal(t, want, frame)
}

// ============================================================
// Round Trip Tests
// ============================================================

func TestDecode_RoundTrip(t *testing.T) {
	packets := []Packet{
		StatePacket{LeftStickX: 1, LeftStickY: 2, RightStickX: 3, RightStickY: 4, LeftKnob: 4095, RightKnob: 0, Switches: 0x3F, Trailer: [2]byte{0x0D, 0x0A}},
		EventPacket{ID: EventOutput4},
		PanelPacket{Left: 42, Right: 9999, States: DefaultPanelStates},
		IndicatorPacket{Analog: 50, Battery: 100},
		PlotPacket{Count: PlotSampleCount, Samples: [3]uint8{0, 128, 255}},
		ConfigPacket{Names: []string{"Volts", "Amps", "RPMs"}},
		ConfigPacket{Names: []string{}},
		InputPacket{Analog: [4]uint16{1, 2, 3, 4095}, Digital: [3]uint8{1, 0, 1}},
		SensorPacket{Temperature: 0x1234, AccelX: -16384, AccelY: 0, AccelZ: 16384, Flags: DefaultSensorFlags},
	}

	for _, p := range packets {
		t.Run(p.Kind().String(), func(t *testing.T) {
			frame := p.Encode()
			got, err := Decode(frame)
			require.NoError(t, err)
			if diff := cmp.Diff(p, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, frame, got.Encode())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte{0xAA})
	require.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode([]byte{0x12, 0x34, 0x00})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = DecodeState(EventPacket{ID: 1}.Encode())
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = DecodePanel([]byte{0xCC, 0x11, 0x00})
	require.ErrorIs(t, err, ErrShortFrame)

	_, err = DecodeConfig([]byte{0xCC, 0x44, 0x02, 0x01, 'a'})
	require.ErrorIs(t, err, ErrShortFrame)

	frame := IndicatorPacket{Analog: 1, Battery: 2}.Encode()
	frame[4]++
	_, err = DecodeIndicator(frame)
	require.ErrorIs(t, err, ErrChecksum)
}
