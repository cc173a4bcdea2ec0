// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rclink/pkg/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int
	presence string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string

	// cfg is the loaded configuration with flags applied
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "rclink",
	Short: "RC link bridge and monitor",
	Long: `rclink - run and inspect the RC link between a companion application and
a bridge device.

The device side decodes stick/switch state and event packets, drives the
actuation outputs, and reports panel, indicator, plot, input and sensor
telemetry. The monitor side decodes that telemetry and can send state and
event packets back.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200] [--presence dsr]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a TOML file (--config, default rclink.toml).
Flags override the file.

For WebSocket authentication, the password is read from the RCLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&presence, "presence", "none", "Modem line that signals a connected peer: none, dsr, cts, dcd (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "TOML configuration file")

	// glog flags (-v, -logtostderr, ...)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// loadConfig reads the config file and lets explicitly set flags win
func loadConfig(cmd *cobra.Command, args []string) error {
	// cobra already set the glog values; mark the Go flag set parsed
	_ = flag.CommandLine.Parse(nil)

	loaded, _, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Device.Port == "" {
		cfg.Device.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Device.Baud = baudRate
	}
	if flags.Changed("presence") {
		cfg.Device.Presence = presence
	}
	if flags.Changed("url") || cfg.Device.URL == "" {
		cfg.Device.URL = wsURL
	}
	if flags.Changed("username") || cfg.Device.Username == "" {
		cfg.Device.Username = wsUsername
	}
	return cfg.Validate()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitError ends a command with a specific process exit code. Commands
// return it instead of calling os.Exit so deferred cleanup still runs.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}
