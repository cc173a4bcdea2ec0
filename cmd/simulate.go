// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/telemetry"
	"github.com/Thermoquad/rclink/pkg/transport"
)

var (
	simulateDuration time.Duration
	simulateFormat   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a device and a scripted application over an in-memory link",
	Long: `Run the device runtime with simulated sensors against a scripted
application, without hardware.

The application sweeps both sticks, cycles the switches and fires events 1-4
in turn. Telemetry coming back is printed like "rclink monitor" would, and the
final output levels and statistics are shown at the end.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().DurationVar(&simulateDuration, "duration", 5*time.Second, "How long to run")
	simulateCmd.Flags().StringVar(&simulateFormat, "format", "text", "Telemetry output format: text, change, json, none")
}

// scriptedState returns the state the scripted application sends at step i
func scriptedState(i int) rclink.StatePacket {
	sweep := uint16((i * 64) % (rclink.AxisMax + 1))
	return rclink.StatePacket{
		LeftStickX:  sweep,
		LeftStickY:  rclink.AxisMax - sweep,
		RightStickX: 2048,
		RightStickY: sweep,
		LeftKnob:    sweep / 2,
		RightKnob:   rclink.AxisMax / 2,
		Switches:    rclink.Switches(1 << uint((i/10)%6)),
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, simulateDuration)
	defer cancel()

	deviceEnd, appEnd := transport.NewPipe()
	defer deviceEnd.Close()

	monitorLog, err := packetLogger(simulateFormat, os.Stdout)
	if err != nil {
		return err
	}

	rt, outputs, err := newRuntime(deviceEnd, telemetry.NewSystemClock(), nil)
	if err != nil {
		return err
	}

	fmt.Printf("rclink - Simulate (%s)\n\n", simulateDuration)

	// Scripted application
	stats := rclink.NewStatistics()
	appDone := make(chan struct{})
	go func() {
		defer close(appDone)
		decoder := rclink.NewMonitorDecoder(rclink.WithRejectHook(func(err error) {
			stats.Update(nil, err, nil)
		}))
		handler := rclink.HandlerFunc(func(p rclink.Packet) {
			stats.Update(p, nil, rclink.ValidatePacket(p))
			if monitorLog != nil {
				monitorLog.Record(p)
			}
		})

		buf := make([]byte, decoder.Capacity())
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for step := 0; ; step++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if step%10 == 0 {
				frame := scriptedState(step / 10).Encode()
				if _, err := appEnd.Write(frame); err != nil {
					glog.Warningf("application write: %v", err)
				}
			}
			if step%100 == 50 {
				id := uint8(step/100%4) + rclink.EventOutput1
				if _, err := appEnd.Write(rclink.EventPacket{ID: id}.Encode()); err != nil {
					glog.Warningf("application write: %v", err)
				}
			}

			for {
				n := appEnd.ReadAvailable(buf)
				if n == 0 {
					break
				}
				decoder.Feed(buf[:n], handler)
			}
		}
	}()

	err = rt.Run(ctx)
	<-appDone

	fmt.Printf("\n--- Outputs ---\n%s", outputs.String())
	fmt.Printf("\n--- Device received ---\n%s", rt.Statistics().String())
	fmt.Printf("\n--- Application received ---\n%s", stats.String())

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
