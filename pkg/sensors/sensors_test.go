// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensors

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/telemetry"
)

var (
	_ telemetry.SensorSource = (*Fixed)(nil)
	_ telemetry.SensorSource = (*Simulated)(nil)
)

func TestFixed(t *testing.T) {
	f := NewFixed()
	require.Equal(t, uint16(0), f.Analog(telemetry.PinA34))

	f.SetAnalog(telemetry.PinA34, 1234)
	f.SetDigital(telemetry.PinD17, true)
	f.SetTemperature(0x1900)
	f.SetAcceleration(1, -2, 3)

	require.Equal(t, uint16(1234), f.Analog(telemetry.PinA34))
	require.True(t, f.Digital(telemetry.PinD17))
	require.False(t, f.Digital(telemetry.PinD0))
	require.Equal(t, uint16(0x1900), f.Temperature())
	x, y, z := f.Acceleration()
	require.Equal(t, []int16{1, -2, 3}, []int16{x, y, z})
}

func TestSimulated_StaysInRange(t *testing.T) {
	clock := telemetry.NewFakeClock(0)
	s := NewSimulated(clock, 1000)

	seenHigh, seenLow := false, false
	for ms := uint32(0); ms < 2000; ms += 7 {
		clock.Set(ms)
		for _, pin := range []telemetry.Pin{telemetry.PinA32, telemetry.PinA34, telemetry.PinA35, telemetry.PinA36, telemetry.PinA39} {
			v := s.Analog(pin)
			require.LessOrEqual(t, v, uint16(rclink.AxisMax))
			if v > 4000 {
				seenHigh = true
			}
			if v < 100 {
				seenLow = true
			}
		}
		x, y, _ := s.Acceleration()
		require.InDelta(t, 16384, float64(x)*float64(x)/16384+float64(y)*float64(y)/16384, 4)
	}
	require.True(t, seenHigh)
	require.True(t, seenLow)
}

func TestSimulated_DigitalToggles(t *testing.T) {
	clock := telemetry.NewFakeClock(0)
	s := NewSimulated(clock, 0)

	states := map[bool]bool{}
	for ms := uint32(0); ms < DefaultPeriod; ms += 100 {
		clock.Set(ms)
		states[s.Digital(telemetry.PinD16)] = true
	}
	require.Len(t, states, 2)
}
