// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/capture"
	"github.com/Thermoquad/rclink/pkg/rclink"
)

var (
	replayDirection string
	replayFormat    string
	replayKinds     string
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file",
	Long: `Decode the traffic recorded with --capture and print every packet with the
time it was recorded.

RX is what the recording side received and TX is what it sent. A capture
taken by "rclink device" has control packets in RX and telemetry in TX; one
taken by "rclink monitor" is the other way around.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayDirection, "direction", "both", "Direction to decode: rx, tx, both")
	replayCmd.Flags().StringVar(&replayFormat, "format", "text", "Output format: text, json")
	replayCmd.Flags().StringVar(&replayKinds, "kinds", "all", "Packets to decode: telemetry, control, all")
}

func runReplay(cmd *cobra.Command, args []string) error {
	var dirs []capture.Direction
	switch replayDirection {
	case "rx":
		dirs = []capture.Direction{capture.RX}
	case "tx":
		dirs = []capture.Direction{capture.TX}
	case "both":
		dirs = []capture.Direction{capture.RX, capture.TX}
	default:
		return fmt.Errorf("unknown direction %q", replayDirection)
	}

	kinds, err := kindsByName(replayKinds)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}

	var emit capture.ReplayFunc
	switch replayFormat {
	case "text":
		h := r.Header()
		fmt.Printf("Capture %s\n", h.Session)
		fmt.Printf("Source: %s\n", h.Source)
		fmt.Printf("Started: %s\n\n", h.Started.Format(time.RFC3339))
		emit = func(dir capture.Direction, at time.Time, p rclink.Packet) {
			fmt.Printf("%s %s", dir, rclink.FormatPacket(p, at))
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		emit = func(dir capture.Direction, at time.Time, p rclink.Packet) {
			rec := struct {
				Direction string `json:"direction"`
				rclink.PacketRecord
			}{dir.String(), rclink.NewPacketRecord(p, at)}
			_ = enc.Encode(rec)
		}
	default:
		return fmt.Errorf("unknown format %q", replayFormat)
	}

	stats, err := capture.Replay(r, dirs, kinds, emit)
	if err != nil {
		return err
	}

	if replayFormat == "text" {
		fmt.Printf("\n--- Summary ---\n")
		for _, d := range dirs {
			s := stats[d]
			fmt.Printf("%s: %d bytes, %d packets, %d checksum errors, %d evicted\n",
				d, s.Ingested, s.Dispatched, s.ChecksumErrors, s.Evicted)
		}
	}
	return nil
}
