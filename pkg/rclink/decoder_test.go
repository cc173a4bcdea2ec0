// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// collector records every dispatched packet
type collector struct {
	packets []Packet
}

func (c *collector) HandlePacket(p Packet) {
	c.packets = append(c.packets, p)
}

func concat(frames ...[]byte) []byte {
	return bytes.Join(frames, nil)
}

// ============================================================
// Basic Extraction Tests
// ============================================================

func TestDecoder_SingleEvent(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	d.Ingest([]byte{0xBB, 0x66, 0x01, 0x01})
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 1}}, c.packets)
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_LeadingNoiseDiscarded(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	d.Ingest(concat([]byte{0x00, 0xFF, 0xAA, 0x13}, EventPacket{ID: 2}.Encode()))
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 2}}, c.packets)
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_BackToBack(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	state := StatePacket{LeftStickX: 2048, LeftStickY: 2048, Switches: 0x01}
	d.Ingest(concat(state.Encode(), EventPacket{ID: 3}.Encode(), EventPacket{ID: 4}.Encode()))

	require.Equal(t, 3, d.Drain(c))
	want := []Packet{state, EventPacket{ID: 3}, EventPacket{ID: 4}}
	if diff := cmp.Diff(want, c.packets); diff != "" {
		t.Errorf("dispatch mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_Fragmented(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	frame := StatePacket{RightStickY: 4095, LeftKnob: 17}.Encode()
	for i, b := range frame {
		d.Ingest([]byte{b})
		n := d.Drain(c)
		if i < len(frame)-1 {
			require.Equal(t, 0, n, "dispatched before byte %d", i)
			require.Equal(t, i+1, d.Buffered())
		} else {
			require.Equal(t, 1, n)
		}
	}
	require.Len(t, c.packets, 1)
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_NilHandler(t *testing.T) {
	d := NewDecoder()
	require.Equal(t, 1, d.Feed(EventPacket{ID: 1}.Encode(), nil))
	require.Equal(t, 0, d.Buffered())
}

// ============================================================
// Rejection and Resync Tests
// ============================================================

func TestDecoder_ChecksumRejected(t *testing.T) {
	var rejected []error
	d := NewDecoder(WithRejectHook(func(err error) { rejected = append(rejected, err) }))
	c := &collector{}

	d.Ingest(concat([]byte{0xBB, 0x66, 0x01, 0x02}, EventPacket{ID: 2}.Encode()))
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 2}}, c.packets)
	require.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	require.Len(t, rejected, 1)
	require.True(t, errors.Is(rejected[0], ErrChecksum))
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_RejectAdvancesOneByte(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	// A corrupt state frame whose payload hides a valid event frame
	corrupt := make([]byte, StatePacketSize)
	copy(corrupt, []byte{0xAA, 0x55, 0xBB, 0x66, 0x01, 0x01})

	d.Ingest(corrupt)
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 1}}, c.packets)
	require.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	require.Equal(t, StatePacketSize-6, d.Buffered())
}

func TestDecoder_IncompleteCandidateSkipped(t *testing.T) {
	d := NewDecoder()
	c := &collector{}

	// Truncated state header followed by a complete event
	d.Ingest(concat([]byte{0xAA, 0x55, 0x01, 0x02}, EventPacket{ID: 1}.Encode()))
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 1}}, c.packets)
	// Everything through the end of the event is gone
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_IncompleteWaits(t *testing.T) {
	d := NewDecoder()
	d.Ingest([]byte{0x00, 0xAA, 0x55, 0x01})
	require.Equal(t, 0, d.Drain(nil))
	require.Equal(t, 4, d.Buffered())
}

func TestDecoder_IgnoresOtherDirection(t *testing.T) {
	d := NewDecoder()
	panel := PanelPacket{Left: 1, Right: 2, States: DefaultPanelStates}.Encode()
	d.Ingest(panel)
	require.Equal(t, 0, d.Drain(nil))
	require.Equal(t, len(panel), d.Buffered())
}

// ============================================================
// Overflow Tests
// ============================================================

func TestDecoder_OverflowEvictsOldest(t *testing.T) {
	d := NewDecoder()
	require.Equal(t, DefaultBufferCapacity, d.Capacity())

	noise := bytes.Repeat([]byte{0x11}, 100)
	evicted := d.Ingest(noise)
	require.Equal(t, 100-DefaultBufferCapacity, evicted)
	require.Equal(t, DefaultBufferCapacity, d.Buffered())

	evicted = d.Ingest(EventPacket{ID: 4}.Encode())
	require.Equal(t, EventPacketSize, evicted)
	require.Equal(t, DefaultBufferCapacity, d.Buffered())

	c := &collector{}
	require.Equal(t, 1, d.Drain(c))
	require.Equal(t, []Packet{EventPacket{ID: 4}}, c.packets)
	require.Equal(t, uint64(100-DefaultBufferCapacity+EventPacketSize), d.Stats().Evicted)
}

func TestDecoder_OverflowKeepsNewestBytes(t *testing.T) {
	d := NewDecoder(WithCapacity(8))
	d.Ingest([]byte{1, 2, 3, 4, 5, 6})
	d.Ingest([]byte{7, 8, 9, 10})
	require.Equal(t, []byte{3, 4, 5, 6, 7, 8, 9, 10}, d.Bytes())
}

func TestDecoder_ResetClearsState(t *testing.T) {
	d := NewDecoder()
	d.Ingest([]byte{0xAA, 0x55})
	d.Reset()
	require.Equal(t, 0, d.Buffered())
	require.Equal(t, DecoderStats{}, d.Stats())
}

// ============================================================
// Monitor Decoder Tests
// ============================================================

func TestMonitorDecoder_Telemetry(t *testing.T) {
	d := NewMonitorDecoder()
	c := &collector{}
	require.Equal(t, MonitorBufferCapacity, d.Capacity())

	config := ConfigPacket{Names: []string{"Volts", "Amps", "RPMs"}}
	stream := concat(
		PanelPacket{Left: 10, Right: 20, States: DefaultPanelStates}.Encode(),
		config.Encode(),
		PlotPacket{Count: 3, Samples: [3]uint8{1, 2, 3}}.Encode(),
	)

	// Split inside the config frame
	d.Ingest(stream[:13])
	require.Equal(t, 1, d.Drain(c))
	d.Ingest(stream[13:])
	require.Equal(t, 2, d.Drain(c))

	require.Len(t, c.packets, 3)
	if diff := cmp.Diff(Packet(config), c.packets[1]); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, KindPlot, c.packets[2].Kind())
}

func TestMonitorDecoder_IgnoresInbound(t *testing.T) {
	d := NewMonitorDecoder()
	require.Equal(t, 0, d.Feed(EventPacket{ID: 1}.Encode(), nil))
}

// ============================================================
// Stale Timeout Tests
// ============================================================

func TestDecoder_ExpireDisabledByDefault(t *testing.T) {
	d := NewDecoder()
	d.Ingest([]byte{0xAA, 0x55, 0x01})
	require.False(t, d.Expire(0))
	require.False(t, d.Expire(1_000_000))
	require.Equal(t, 3, d.Buffered())
}

func TestDecoder_ExpireFlushesStaleBytes(t *testing.T) {
	d := NewDecoder(WithStaleTimeout(100))
	d.Ingest([]byte{0xAA, 0x55, 0x01})

	require.False(t, d.Expire(1000))
	require.False(t, d.Expire(1100))
	require.True(t, d.Expire(1101))
	require.Equal(t, 0, d.Buffered())
	require.Equal(t, uint64(3), d.Stats().Flushed)
}

func TestDecoder_ExpireRestartsAfterProgress(t *testing.T) {
	d := NewDecoder(WithStaleTimeout(100))
	d.Ingest([]byte{0xAA, 0x55})
	require.False(t, d.Expire(0))

	// A packet extracted at t=90 restarts the hold timer for the leftover bytes
	d.Feed(concat(EventPacket{ID: 1}.Encode(), []byte{0xAA}), nil)
	require.False(t, d.Expire(90))
	require.False(t, d.Expire(150))
	require.True(t, d.Expire(191))
}

func TestDecoder_ExpireAcrossWraparound(t *testing.T) {
	d := NewDecoder(WithStaleTimeout(100))
	d.Ingest([]byte{0xAA})

	require.False(t, d.Expire(0xFFFFFFF0))
	require.False(t, d.Expire(0x00000050)) // 96 ms later
	require.True(t, d.Expire(0x00000060))  // 112 ms later
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// randomInboundPacket builds a packet whose bytes never contain a header start
// byte outside its own header
func randomInboundPacket(rng interface{ Intn(int) int }) Packet {
	if rng.Intn(3) == 0 {
		return EventPacket{ID: uint8(1 + rng.Intn(4))}
	}
	axis := func() uint16 { return uint16(rng.Intn(AxisMax + 1)) }
	return StatePacket{
		LeftStickX:  axis(),
		LeftStickY:  axis(),
		RightStickX: axis(),
		RightStickY: axis(),
		LeftKnob:    axis(),
		RightKnob:   axis(),
		Switches:    Switches(rng.Intn(0x40)),
	}
}

func TestFuzzDecoder_RecoversFramesFromNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		d := NewDecoder()
		c := &collector{}

		var want []Packet
		var stream []byte
		for i := 0; i < 1+rng.Intn(8); i++ {
			// Noise never contains a header start byte
			for j := rng.Intn(6); j > 0; j-- {
				b := byte(rng.Intn(256))
				if b == StateHeader1 || b == EventHeader1 {
					b = 0x00
				}
				stream = append(stream, b)
			}
			p := randomInboundPacket(rng)
			want = append(want, p)
			stream = append(stream, p.Encode()...)
		}

		for len(stream) > 0 {
			n := 1 + rng.Intn(StatePacketSize)
			if n > len(stream) {
				n = len(stream)
			}
			d.Ingest(stream[:n])
			d.Drain(c)
			stream = stream[n:]
			require.LessOrEqual(t, d.Buffered(), d.Capacity())
		}

		if diff := cmp.Diff(want, c.packets); diff != "" {
			t.Fatalf("round %d: dispatch mismatch (-want +got):\n%s", round, diff)
		}
	}
}

func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		d := NewDecoder(WithCapacity(HeaderSize + rng.Intn(128)))
		if rng.Intn(2) == 0 {
			d = NewMonitorDecoder()
		}

		data := make([]byte, rng.Intn(512))
		rng.Read(data)

		d.Feed(data, HandlerFunc(func(p Packet) {
			// Everything dispatched must survive a re-decode
			if _, err := Decode(p.Encode()); err != nil {
				t.Fatalf("round %d: dispatched packet does not re-decode: %v", round, err)
			}
		}))
		require.LessOrEqual(t, d.Buffered(), d.Capacity())
	}
}

func TestFuzzDecoder_ResyncsAfterFalseHeaders(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	headerBytes := []byte{StateHeader1, StateHeader2, EventHeader1, EventHeader2}

	collisions := 0
	for round := 0; round < rounds; round++ {
		d := NewDecoder()
		c := &collector{}

		// Noise is arbitrary and often forms header pairs
		var stream []byte
		for j := rng.Intn(40); j > 0; j-- {
			if rng.Intn(3) == 0 {
				stream = append(stream, headerBytes[rng.Intn(len(headerBytes))])
			} else {
				stream = append(stream, byte(rng.Intn(256)))
			}
		}
		target := randomInboundPacket(rng)
		stream = append(stream, target.Encode()...)

		for len(stream) > 0 {
			n := 1 + rng.Intn(StatePacketSize)
			if n > len(stream) {
				n = len(stream)
			}
			d.Ingest(stream[:n])
			d.Drain(c)
			stream = stream[n:]
			require.LessOrEqual(t, d.Buffered(), d.Capacity())
		}

		if len(c.packets) > 0 && cmp.Equal(target, c.packets[len(c.packets)-1]) {
			require.Equal(t, 0, d.Buffered(), "round %d", round)
			continue
		}
		// Only a false header whose checksum happens to match may swallow
		// the frame, and that false packet must have been dispatched
		require.NotEmpty(t, c.packets, "round %d: frame never dispatched", round)
		collisions++
	}
	require.LessOrEqual(t, collisions, rounds/20+1)
}

// ============================================================
// Legacy Frame Tests
// ============================================================

func TestDecoder_LegacyFrames(t *testing.T) {
	input := []byte{0xCC, 0x55, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0xFF, 0x0F, 1, 0, 1}
	sensor := []byte{0xCC, 0x66, 0x00, 0x19, 0x00, 0x40, 0x00, 0xC0, 0x01, 0x00, 0x03, 0x5A, 0xDE, 0xAD}
	require.Len(t, input, LegacyInputPacketSize)
	require.Len(t, sensor, LegacySensorPacketSize)

	d := NewMonitorDecoder(WithLegacyFrames())
	c := &collector{}
	d.Ingest(concat(input, sensor, PanelPacket{Left: 12, Right: 34, States: DefaultPanelStates}.Encode()))
	require.Equal(t, 3, d.Drain(c))

	want := []Packet{
		InputPacket{Analog: [4]uint16{1, 2, 3, 4095}, Digital: [3]uint8{1, 0, 1}},
		SensorPacket{Temperature: 0x1900, AccelX: 0x4000, AccelY: -0x4000, AccelZ: 1, Flags: 0x03},
		PanelPacket{Left: 12, Right: 34, States: DefaultPanelStates},
	}
	if diff := cmp.Diff(want, c.packets); diff != "" {
		t.Errorf("dispatch mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_LegacyFramesOffByDefault(t *testing.T) {
	input := []byte{0xCC, 0x55, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0xFF, 0x0F, 1, 0, 1}

	d := NewMonitorDecoder()
	c := &collector{}
	d.Ingest(input)
	require.Equal(t, 0, d.Drain(c))
	require.Equal(t, len(input), d.Buffered())
}

func TestDecodeLegacy_Rejects(t *testing.T) {
	_, err := DecodeLegacyInput([]byte{0xCC, 0x55, 0x00})
	require.ErrorIs(t, err, ErrShortFrame)

	_, err = DecodeLegacySensor(make([]byte, LegacySensorPacketSize))
	require.ErrorIs(t, err, ErrBadHeader)
}
