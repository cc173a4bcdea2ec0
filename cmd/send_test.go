// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

func TestParsePacketCommand_State(t *testing.T) {
	frame, err := parsePacketCommand(strings.Fields("state 0 4095 2048 100 0x10 7 0x81"))
	require.NoError(t, err)
	require.Len(t, frame, rclink.StatePacketSize)

	s, err := rclink.DecodeState(frame)
	require.NoError(t, err)
	require.Equal(t, uint16(4095), s.LeftStickY)
	require.Equal(t, uint16(0x10), s.LeftKnob)
	require.True(t, s.Switches.Line(1))
	require.True(t, s.Switches.Line(8))
	require.False(t, s.Switches.Line(2))
}

func TestParsePacketCommand_Event(t *testing.T) {
	frame, err := parsePacketCommand([]string{"e", "3"})
	require.NoError(t, err)

	p, err := rclink.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, rclink.EventPacket{ID: 3}, p)
}

func TestParsePacketCommand_Raw(t *testing.T) {
	frame, err := parsePacketCommand(strings.Fields("raw 0xBB,0x66 01:01"))
	require.NoError(t, err)
	require.Equal(t, []byte{0xBB, 0x66, 0x01, 0x01}, frame)
}

func TestParsePacketCommand_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"state 1 2 3",
		"state 1 2 3 4 5 4096",
		"state 1 2 3 4 5 6 256",
		"event",
		"event 300",
		"raw",
		"raw zz",
		"fan 50",
	} {
		_, err := parsePacketCommand(strings.Fields(line))
		require.Error(t, err, line)
	}
}

func TestKindsByName(t *testing.T) {
	kinds, err := kindsByName("control")
	require.NoError(t, err)
	require.Equal(t, rclink.InboundKinds, kinds)

	all, err := kindsByName("all")
	require.NoError(t, err)
	require.Len(t, all, len(rclink.InboundKinds)+len(rclink.OutboundKinds))

	_, err = kindsByName("everything")
	require.Error(t, err)
}

func TestScriptedState_InRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := scriptedState(i)
		require.Empty(t, rclink.ValidatePacket(s))
	}
}
