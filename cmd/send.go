// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

var (
	sendRepeat   int
	sendInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send state, event or raw packets to a device",
	Long: `Build packets and write them to the connection.

Examples:
  rclink send state 2048 2048 2048 2048 0 4095 0x05 --port /dev/ttyUSB0
  rclink send event 3 --url ws://bridge.local/ws
  rclink send raw "BB 66 03 03" --port /dev/ttyUSB0`,
}

var sendStateCmd = &cobra.Command{
	Use:   "state LX LY RX RY KNOB_L KNOB_R [SWITCHES]",
	Short: "Send a state packet (axes 0-4095, switch bits 0x00-0xFF)",
	Args:  cobra.RangeArgs(6, 7),
	RunE:  runSend("state"),
}

var sendEventCmd = &cobra.Command{
	Use:   "event ID",
	Short: "Send an event packet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend("event"),
}

var sendRawCmd = &cobra.Command{
	Use:   "raw HEX...",
	Short: "Send raw bytes given as hex",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend("raw"),
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.AddCommand(sendStateCmd, sendEventCmd, sendRawCmd)
	sendCmd.PersistentFlags().IntVar(&sendRepeat, "repeat", 1, "Number of times to send")
	sendCmd.PersistentFlags().DurationVar(&sendInterval, "interval", 20*time.Millisecond, "Delay between repeats")
}

// parsePacketCommand builds a frame from a command line such as
// "e 3", "s 0 0 0 0 0 0 0x01" or "raw bb660303"
func parsePacketCommand(fields []string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "s", "state":
		if len(args) < 6 || len(args) > 7 {
			return nil, fmt.Errorf("state needs 6 axes and optional switches, got %d values", len(args))
		}
		var axes [6]uint16
		for i := range axes {
			v, err := strconv.ParseUint(args[i], 0, 16)
			if err != nil || v > rclink.AxisMax {
				return nil, fmt.Errorf("axis %d: %q not in 0-%d", i+1, args[i], rclink.AxisMax)
			}
			axes[i] = uint16(v)
		}
		var sw uint64
		if len(args) == 7 {
			var err error
			sw, err = strconv.ParseUint(args[6], 0, 8)
			if err != nil {
				return nil, fmt.Errorf("switches: %q: %w", args[6], err)
			}
		}
		return rclink.StatePacket{
			LeftStickX:  axes[0],
			LeftStickY:  axes[1],
			RightStickX: axes[2],
			RightStickY: axes[3],
			LeftKnob:    axes[4],
			RightKnob:   axes[5],
			Switches:    rclink.Switches(sw),
		}.Encode(), nil

	case "e", "event":
		if len(args) != 1 {
			return nil, fmt.Errorf("event needs one id")
		}
		id, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("event id: %q: %w", args[0], err)
		}
		return rclink.EventPacket{ID: uint8(id)}.Encode(), nil

	case "r", "raw":
		s := strings.ToLower(strings.Join(args, ""))
		s = strings.ReplaceAll(s, "0x", "")
		s = strings.NewReplacer(" ", "", ",", "", ":", "").Replace(s)
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("raw: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("raw: no bytes")
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown command %q (use state, event or raw)", fields[0])
}

func runSend(kind string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		frame, err := parsePacketCommand(append([]string{kind}, args...))
		if err != nil {
			return err
		}

		ch, connInfo, err := OpenChannel(context.Background())
		if err != nil {
			return err
		}
		defer ch.Close()

		fmt.Printf("Connection: %s\n", connInfo)
		for i := 0; i < sendRepeat; i++ {
			if i > 0 {
				time.Sleep(sendInterval)
			}
			if _, err := ch.Write(frame); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			fmt.Printf("TX %s\n", rclink.FormatHex(frame))
		}
		return nil
	}
}
