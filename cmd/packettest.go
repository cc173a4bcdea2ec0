// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

var (
	packetTestTimeout int
	packetTestKinds   string
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid packet",
	Long: `Wait for a valid packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
packet. It ignores noise and waits for a complete packet with a valid
checksum. By default it waits for device telemetry (--kinds telemetry); use
--kinds control to wait for state or event packets from an application.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
	packetTestCmd.Flags().StringVar(&packetTestKinds, "kinds", "telemetry", "Packets to wait for: telemetry, control, all")
}

// kindsByName maps a --kinds value to packet kinds
func kindsByName(name string) ([]rclink.Kind, error) {
	switch name {
	case "telemetry", "outbound":
		return rclink.OutboundKinds, nil
	case "control", "inbound":
		return rclink.InboundKinds, nil
	case "all":
		return append(append([]rclink.Kind(nil), rclink.InboundKinds...), rclink.OutboundKinds...), nil
	}
	return nil, fmt.Errorf("unknown packet kinds %q (use telemetry, control or all)", name)
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	kinds, err := kindsByName(packetTestKinds)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()

	ch, connInfo, err := OpenChannel(ctx)
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer ch.Close()

	fmt.Printf("rclink - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	decoder := rclink.NewDecoder(rclink.WithCapacity(rclink.MonitorBufferCapacity), rclink.WithKinds(kinds...))
	buf := make([]byte, 128)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	var received rclink.Packet
	handler := rclink.HandlerFunc(func(p rclink.Packet) {
		if received == nil {
			received = p
		}
	})

	for received == nil {
		select {
		case <-ctx.Done():
			return &ExitError{Code: 1, Err: fmt.Errorf("timeout: no valid packet received within %d seconds", packetTestTimeout)}
		case <-ticker.C:
		}

		if n := ch.ReadAvailable(buf); n > 0 {
			decoder.Feed(buf[:n], handler)
		}
	}

	if rejected := decoder.Stats().ChecksumErrors; rejected > 0 {
		fmt.Printf("(rejected %d corrupt frames before sync)\n", rejected)
	}
	frame := received.Encode()
	fmt.Printf("SUCCESS: Received valid packet\n")
	fmt.Printf("  Kind: %s\n", rclink.FormatKind(received.Kind()))
	fmt.Printf("  Length: %d bytes\n", len(frame))
	fmt.Printf("  Frame: %s\n", rclink.FormatHex(frame))
	fmt.Print(rclink.FormatPayload(received))
	return nil
}
