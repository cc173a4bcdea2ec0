// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/actuation"
	"github.com/Thermoquad/rclink/pkg/device"
	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/sensors"
	"github.com/Thermoquad/rclink/pkg/telemetry"
	"github.com/Thermoquad/rclink/pkg/transport"
)

var (
	deviceListen  string
	deviceConsole bool
	deviceMode    string
	deviceCapture string
	deviceLog     string
	deviceSensors string
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Run the bridge device runtime",
	Long: `Run the device side of the link.

State packets drive the steering servo, motors, LED, buzzer and switch
outputs; event packets pulse the event outputs. Panel, indicator, plot, input
and sensor telemetry is sent back on its own schedule, and the plot channel
names are sent every time a peer connects.

Transports:
  --port / --url      connect to the peer over serial or WebSocket
  --listen :8080      accept a single WebSocket peer

Debug modes (--mode panel|indicator|plot) replace one telemetry channel with
values typed on the operator console (--console):
  panel      l,r      (0-9999)
  indicator  a,b      (0-100)
  plot       v1,v2,v3 (0-255)`,
	RunE: runDevice,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.Flags().StringVar(&deviceListen, "listen", "", "Serve a WebSocket peer on this address instead of dialing")
	deviceCmd.Flags().BoolVar(&deviceConsole, "console", false, "Start the interactive operator console")
	deviceCmd.Flags().StringVar(&deviceMode, "mode", "", "Telemetry debug mode: none, panel, indicator, plot")
	deviceCmd.Flags().StringVar(&deviceCapture, "capture", "", "Record link traffic to this file")
	deviceCmd.Flags().StringVar(&deviceLog, "log", "change", "Packet log format: text, change, json, none")
	deviceCmd.Flags().StringVar(&deviceSensors, "sensors", "", "Sensor source: fixed, simulated")
}

// packetLogger builds the packet logger selected by name
func packetLogger(name string, w io.Writer) (rclink.Logger, error) {
	switch strings.ToLower(name) {
	case "text":
		return rclink.NewTextLogger(w), nil
	case "change":
		return rclink.NewChangeLogger(w), nil
	case "json":
		return rclink.NewJSONLogger(w), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown log format %q", name)
}

// sensorSource builds the sensor source named in the config
func sensorSource(clock telemetry.Clock) telemetry.SensorSource {
	if strings.EqualFold(cfg.Sensors.Source, "fixed") {
		return sensors.NewFixed()
	}
	return sensors.NewSimulated(clock, cfg.Sensors.Period.Millis())
}

// newRuntime builds a device runtime from the loaded configuration
func newRuntime(ch transport.Channel, clock telemetry.Clock, logger rclink.Logger) (*device.Runtime, *actuation.Recorder, error) {
	sched, err := cfg.Telemetry.Scheduler()
	if err != nil {
		return nil, nil, err
	}

	rec := actuation.NewRecorder()
	var outputs actuation.Outputs = rec
	if cfg.Actuation.Log {
		outputs = actuation.NewLogOutputs(rec)
	}

	rt := device.New(ch, clock, sensorSource(clock), outputs, device.Options{
		Telemetry:  sched,
		Decoder:    cfg.Device.DecoderOptions(),
		Logger:     logger,
		PulseWidth: cfg.Actuation.PulseWidth.Millis(),
		Interval:   cfg.Device.Interval.Std(),
	})
	return rt, rec, nil
}

func openDeviceChannel(ctx context.Context) (transport.Channel, string, error) {
	if deviceListen == "" {
		return OpenChannel(ctx)
	}
	server := transport.NewWebSocketServer(0)
	go func() {
		if err := server.ListenAndServe(deviceListen); err != nil {
			glog.Errorf("websocket server: %v", err)
		}
	}()
	return server, fmt.Sprintf("WebSocket server: %s", deviceListen), nil
}

func runDevice(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("mode") {
		cfg.Telemetry.Debug = deviceMode
	}
	if cmd.Flags().Changed("sensors") {
		cfg.Sensors.Source = deviceSensors
	}
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Path = deviceCapture
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, connInfo, err := openDeviceChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	ch, closeCapture, err := openCapture(ch, cfg.Capture.Path, "device "+connInfo)
	if err != nil {
		return err
	}
	defer closeCapture()

	logger, err := packetLogger(deviceLog, os.Stdout)
	if err != nil {
		return err
	}

	rt, outputs, err := newRuntime(ch, telemetry.NewSystemClock(), logger)
	if err != nil {
		return err
	}

	fmt.Printf("rclink - Device\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Debug mode: %s\n", rt.Scheduler().DebugMode())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if deviceConsole {
		ctx = runConsole(ctx, rt, outputs)
	}

	err = rt.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
