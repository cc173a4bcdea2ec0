// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p Packet, ts time.Time) string {
	result := fmt.Sprintf("[%s] %s\n", ts.Format("15:04:05.000"), FormatKind(p.Kind()))
	result += FormatPayload(p)
	return result
}

// FormatKind returns the name and header bytes of a kind
func FormatKind(k Kind) string {
	s, ok := Spec(k)
	if !ok {
		return k.String()
	}
	size := fmt.Sprintf("len=%d", s.Size)
	if s.Size == 0 {
		size = "len=var"
	}
	return fmt.Sprintf("%s (0x%02X%02X) %s", s.Name, s.Header[0], s.Header[1], size)
}

// FormatPayload formats the payload of a packet
func FormatPayload(p Packet) string {
	switch pkt := p.(type) {
	case StatePacket:
		return fmt.Sprintf("  Left: X=%d Y=%d  Right: X=%d Y=%d\n  Knobs: L=%d R=%d  Switches: %s\n",
			pkt.LeftStickX, pkt.LeftStickY, pkt.RightStickX, pkt.RightStickY,
			pkt.LeftKnob, pkt.RightKnob, FormatSwitches(pkt.Switches))

	case EventPacket:
		return fmt.Sprintf("  Event: %d\n", pkt.ID)

	case PanelPacket:
		return fmt.Sprintf("  Panel: L=%d R=%d  States: 0x%02X\n", pkt.Left, pkt.Right, pkt.States)

	case IndicatorPacket:
		return fmt.Sprintf("  Analog: %d%%  Battery: %d%%\n", pkt.Analog, pkt.Battery)

	case PlotPacket:
		return fmt.Sprintf("  Plot: %d %d %d (count=%d)\n", pkt.Samples[0], pkt.Samples[1], pkt.Samples[2], pkt.Count)

	case ConfigPacket:
		if len(pkt.Names) == 0 {
			return "  Channels: (none)\n"
		}
		return fmt.Sprintf("  Channels: %s\n", strings.Join(pkt.Names, ", "))

	case InputPacket:
		return fmt.Sprintf("  Analog: A34=%d A35=%d A36=%d A39=%d\n  Digital: D0=%d D16=%d D17=%d\n",
			pkt.Analog[0], pkt.Analog[1], pkt.Analog[2], pkt.Analog[3],
			pkt.Digital[0], pkt.Digital[1], pkt.Digital[2])

	case SensorPacket:
		return fmt.Sprintf("  Temp: %d  Accel: X=%d Y=%d Z=%d  Flags: 0x%02X\n",
			pkt.Temperature, pkt.AccelX, pkt.AccelY, pkt.AccelZ, pkt.Flags)
	}

	return ""
}

// FormatSwitches renders the switch bitfield as line numbers, e.g. "1 3 8"
func FormatSwitches(s Switches) string {
	on := []string{}
	for i := 1; i <= SwitchLines; i++ {
		if s.Line(i) {
			on = append(on, fmt.Sprintf("%d", i))
		}
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, " ")
}

// FormatHex renders bytes as space separated hex
func FormatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// FormatUptime formats a duration as a human-readable string
func FormatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)

	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60

	parts := []string{}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + last
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
