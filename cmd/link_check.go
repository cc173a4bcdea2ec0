// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/transport"
)

var linkCheckDuration int

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability",
	Long: `Open the connection and log every chunk of bytes received and every change
of the connected state, without decoding anything.

Useful for debugging connection stability and modem line presence detection.

Exit codes:
  0 - Test completed normally
  1 - Connection closed during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenChannel(context.Background())
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer ch.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	return checkLink(os.Stdout, ch, time.Duration(linkCheckDuration)*time.Second, cfg.Device.Presence == "none")
}

// checkLink logs traffic and presence changes on ch for d. With stopOnClose a
// lost connection ends the check with exit code 1.
func checkLink(w io.Writer, ch transport.Channel, d time.Duration, stopOnClose bool) error {
	start := time.Now()
	endTime := start.Add(d)
	bytesReceived := 0
	chunksReceived := 0
	transitions := 0

	buf := make([]byte, 256)
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	connected := ch.Connected()
	fmt.Fprintf(w, "[%s] Connected: %v\n", time.Now().Format("15:04:05.000"), connected)

	results := func(result string) {
		fmt.Fprintf(w, "\n--- Test Results ---\n")
		fmt.Fprintf(w, "Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(w, "Chunks received: %d\n", chunksReceived)
		fmt.Fprintf(w, "Bytes received: %d\n", bytesReceived)
		fmt.Fprintf(w, "Presence changes: %d\n", transitions)
		fmt.Fprintf(w, "Result: %s\n", result)
	}

	for time.Now().Before(endTime) {
		select {
		case <-poll.C:
			for {
				n := ch.ReadAvailable(buf)
				if n == 0 {
					break
				}
				bytesReceived += n
				chunksReceived++
				fmt.Fprintf(w, "[%s] Received %d bytes: %x\n", time.Now().Format("15:04:05.000"), n, buf[:n])
			}

			if now := ch.Connected(); now != connected {
				connected = now
				transitions++
				fmt.Fprintf(w, "[%s] Connected: %v\n", time.Now().Format("15:04:05.000"), connected)
				if !connected && stopOnClose {
					results("FAILED (connection closed)")
					return &ExitError{Code: 1, Err: errors.New("connection closed during link check")}
				}
			}

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Fprintf(w, "[%s] Still running... (%.0fs remaining)\n", time.Now().Format("15:04:05.000"), remaining)
		}
	}

	results("PASSED (connection stable)")
	return nil
}
