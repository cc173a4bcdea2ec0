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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/publish"
	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/transport"
)

var (
	monitorFormat  string
	monitorTUI     bool
	monitorMQTT    string
	monitorCapture string
	monitorShowAll bool
	monitorLegacy  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and display device telemetry",
	Long: `Continuously decode and display the telemetry sent by a device.

Each packet is printed with timestamp, kind and decoded fields (--format text)
or as one JSON object per line (--format json). Out of range values are
flagged and counted.

With --tui, a dashboard shows the latest value of every channel, statistics
and an event log. Its input box sends packets to the device:
  e <id>                                   event packet
  s <lx> <ly> <rx> <ry> <kl> <kr> <sw>     state packet (sw may be 0x..)

With --mqtt mqtt://host:1883, every packet is also published as JSON to
<topic>/<kind>.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorFormat, "format", "text", "Output format: text, json")
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use terminal UI")
	monitorCmd.Flags().StringVar(&monitorMQTT, "mqtt", "", "Publish packets to this MQTT broker URL")
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record link traffic to this file")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Log every packet in the TUI event log, not just anomalies")
	monitorCmd.Flags().BoolVar(&monitorLegacy, "legacy-frames", false, "Read input and sensor frames in the sizes sent by the original firmware")
}

// monitorEvent is what the reader loop reports for every decoder outcome
type monitorEvent struct {
	packet           rclink.Packet
	decodeErr        error
	validationErrors []rclink.ValidationError
	evicted          int
	at               time.Time
}

// readMonitor polls ch and reports decoded packets and rejects to emit until
// ctx is done or the link closes
func readMonitor(ctx context.Context, ch transport.Channel, emit func(monitorEvent)) error {
	opts := []rclink.DecoderOption{rclink.WithRejectHook(func(err error) {
		emit(monitorEvent{decodeErr: err, at: time.Now()})
	})}
	if monitorLegacy {
		opts = append(opts, rclink.WithLegacyFrames())
	}
	decoder := rclink.NewMonitorDecoder(opts...)
	handler := rclink.HandlerFunc(func(p rclink.Packet) {
		emit(monitorEvent{packet: p, validationErrors: rclink.ValidatePacket(p), at: time.Now()})
	})

	buf := make([]byte, decoder.Capacity())
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for {
			n := ch.ReadAvailable(buf)
			if n == 0 {
				break
			}
			if evicted := decoder.Ingest(buf[:n]); evicted > 0 {
				emit(monitorEvent{evicted: evicted, at: time.Now()})
			}
			decoder.Drain(handler)
		}

		if !ch.Connected() {
			if _, isServer := ch.(*transport.WebSocketServer); !isServer {
				return transport.ErrClosed
			}
		}
	}
}

// connectMQTT returns a publisher when a broker is configured
func connectMQTT() (*publish.Client, error) {
	broker := cfg.MQTT.Broker
	if monitorMQTT != "" {
		broker = monitorMQTT
	}
	if broker == "" {
		return nil, nil
	}
	client, err := publish.Connect(broker, cfg.MQTT.Topic, cfg.MQTT.QoS, 10*time.Second)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Publishing to %s under %s\n", publish.RedactURL(broker), cfg.MQTT.Topic)
	return client, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Path = monitorCapture
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, connInfo, err := OpenChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	ch, closeCapture, err := openCapture(ch, cfg.Capture.Path, "monitor "+connInfo)
	if err != nil {
		return err
	}
	defer closeCapture()

	mqtt, err := connectMQTT()
	if err != nil {
		return err
	}
	var published rclink.Logger
	if mqtt != nil {
		defer mqtt.Close()
		published = mqtt
	}

	if monitorTUI {
		return runMonitorTUI(ctx, ch, connInfo, published)
	}

	var logger rclink.Logger
	switch monitorFormat {
	case "text":
		logger = rclink.NewTextLogger(os.Stdout)
	case "json":
		logger = rclink.NewJSONLogger(os.Stdout)
	default:
		return fmt.Errorf("unknown format %q", monitorFormat)
	}
	logger = rclink.MultiLogger{logger, published}

	if monitorFormat == "text" {
		fmt.Printf("rclink - Monitor\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	stats := rclink.NewStatistics()
	err = readMonitor(ctx, ch, func(ev monitorEvent) {
		switch {
		case ev.evicted > 0:
			stats.AddEvicted(ev.evicted)
		case ev.decodeErr != nil:
			stats.Update(nil, ev.decodeErr, nil)
			if monitorFormat == "text" {
				fmt.Printf("[%s] \033[1;31mREJECTED:\033[0m %v\n\n", ev.at.Format("15:04:05.000"), ev.decodeErr)
			}
		default:
			stats.Update(ev.packet, nil, ev.validationErrors)
			logger.Record(ev.packet)
			if monitorFormat == "text" {
				for _, verr := range ev.validationErrors {
					fmt.Printf("  \033[1;33mANOMALY:\033[0m %s\n", verr.Message)
				}
			}
		}
	})

	if monitorFormat == "text" {
		fmt.Printf("\n%s", stats.String())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, transport.ErrClosed) {
		glog.Info("connection closed")
		return nil
	}
	return err
}

// runMonitorTUI runs the dashboard until the user quits
func runMonitorTUI(ctx context.Context, ch transport.Channel, connInfo string, published rclink.Logger) error {
	m := initialModel(connInfo, ch, monitorShowAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := readMonitor(readCtx, ch, func(ev monitorEvent) {
			if ev.packet != nil && published != nil {
				published.Record(ev.packet)
			}
			p.Send(packetMsg(ev))
		})
		if errors.Is(err, transport.ErrClosed) {
			p.Send(connectionLostMsg{})
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
