// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the optional rclink TOML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/telemetry"
	"github.com/Thermoquad/rclink/pkg/transport"
)

// DefaultPath is where commands look for a config file when --config is not
// given
const DefaultPath = "rclink.toml"

// Duration is a time.Duration written as a string such as "500ms"
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Millis returns the value in whole milliseconds
func (d Duration) Millis() uint32 {
	return uint32(time.Duration(d) / time.Millisecond)
}

type Config struct {
	Device    DeviceConfig    `toml:"device"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Actuation ActuationConfig `toml:"actuation"`
	Sensors   SensorsConfig   `toml:"sensors"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Capture   CaptureConfig   `toml:"capture"`

	path string `toml:"-"`
}

type DeviceConfig struct {
	Port     string `toml:"port"`
	Baud     int    `toml:"baud"`
	Presence string `toml:"presence"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Listen   string `toml:"listen"`

	BufferSize   int      `toml:"buffer_size"`
	StaleTimeout Duration `toml:"stale_timeout"`
	Interval     Duration `toml:"interval"`
}

type TelemetryConfig struct {
	IndicatorInterval   Duration `toml:"indicator_interval"`
	PlotInterval        Duration `toml:"plot_interval"`
	InputInterval       Duration `toml:"input_interval"`
	SensorInterval      Duration `toml:"sensor_interval"`
	PanelResendWindow   Duration `toml:"panel_resend_window"`
	PanelResendInterval Duration `toml:"panel_resend_interval"`

	PanelStates uint8    `toml:"panel_states"`
	SensorFlags uint8    `toml:"sensor_flags"`
	PlotNames   []string `toml:"plot_names"`
	Channels    []string `toml:"channels"`
	Debug       string   `toml:"debug"`
}

type ActuationConfig struct {
	PulseWidth Duration `toml:"pulse_width"`
	// Log prints every output change
	Log bool `toml:"log"`
}

type SensorsConfig struct {
	// Source is "fixed" or "simulated"
	Source string   `toml:"source"`
	Period Duration `toml:"period"`
}

type MQTTConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	QoS      uint8  `toml:"qos"`
}

type CaptureConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	tc := telemetry.DefaultConfig()
	ms := func(v uint32) Duration { return Duration(time.Duration(v) * time.Millisecond) }

	channels := make([]string, len(tc.Channels))
	for i, c := range tc.Channels {
		channels[i] = c.String()
	}

	return Config{
		Device: DeviceConfig{
			Baud:       115200,
			Presence:   "none",
			BufferSize: rclink.DefaultBufferCapacity,
			Interval:   Duration(5 * time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			IndicatorInterval:   ms(tc.IndicatorInterval),
			PlotInterval:        ms(tc.PlotInterval),
			InputInterval:       ms(tc.InputInterval),
			SensorInterval:      ms(tc.SensorInterval),
			PanelResendWindow:   ms(tc.PanelResendWindow),
			PanelResendInterval: ms(tc.PanelResendInterval),
			PanelStates:         tc.PanelStates,
			SensorFlags:         tc.SensorFlags,
			PlotNames:           append([]string(nil), tc.PlotNames...),
			Channels:            channels,
			Debug:               tc.Debug.String(),
		},
		Actuation: ActuationConfig{
			PulseWidth: Duration(50 * time.Millisecond),
		},
		Sensors: SensorsConfig{
			Source: "simulated",
			Period: Duration(10 * time.Second),
		},
		MQTT: MQTTConfig{
			Topic: "rclink/telemetry",
		},
	}
}

// Load reads path. A missing file is an error.
func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, fmt.Errorf("config %s: %w", path, os.ErrNotExist)
	}
	return cfg, nil
}

// LoadOrDefault reads path on top of the defaults. A missing file yields the
// defaults and exists=false.
func LoadOrDefault(path string) (cfg Config, exists bool, err error) {
	cfg = Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

// Save writes the configuration as TOML
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.path = path
	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.path
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	if c.Device.Baud <= 0 {
		return fmt.Errorf("device.baud must be positive: %d", c.Device.Baud)
	}
	if _, err := transport.ParseModemLine(c.Device.Presence); err != nil {
		return fmt.Errorf("device.presence: %w", err)
	}
	if c.Device.BufferSize < rclink.StatePacketSize {
		return fmt.Errorf("device.buffer_size must hold a state packet (%d bytes): %d",
			rclink.StatePacketSize, c.Device.BufferSize)
	}
	if c.Device.StaleTimeout < 0 {
		return fmt.Errorf("device.stale_timeout is negative")
	}
	if c.Device.Interval <= 0 {
		return fmt.Errorf("device.interval must be positive")
	}

	if _, err := c.Telemetry.Scheduler(); err != nil {
		return err
	}

	if c.Actuation.PulseWidth <= 0 {
		return fmt.Errorf("actuation.pulse_width must be positive")
	}

	switch strings.ToLower(c.Sensors.Source) {
	case "fixed", "simulated":
	default:
		return fmt.Errorf("sensors.source must be fixed or simulated: %q", c.Sensors.Source)
	}
	if c.Sensors.Period < 0 {
		return fmt.Errorf("sensors.period is negative")
	}

	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos out of range: %d", c.MQTT.QoS)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
	}
	return nil
}

// Scheduler converts the telemetry section to a scheduler configuration
func (t TelemetryConfig) Scheduler() (telemetry.Config, error) {
	cfg := telemetry.Config{
		IndicatorInterval:   t.IndicatorInterval.Millis(),
		PlotInterval:        t.PlotInterval.Millis(),
		InputInterval:       t.InputInterval.Millis(),
		SensorInterval:      t.SensorInterval.Millis(),
		PanelResendWindow:   t.PanelResendWindow.Millis(),
		PanelResendInterval: t.PanelResendInterval.Millis(),
		PanelStates:         t.PanelStates,
		SensorFlags:         t.SensorFlags,
		PlotNames:           t.PlotNames,
	}

	if cfg.PanelResendInterval == 0 {
		return telemetry.Config{}, fmt.Errorf("telemetry.panel_resend_interval must be positive")
	}
	if len(t.PlotNames) > 0xFF {
		return telemetry.Config{}, fmt.Errorf("telemetry.plot_names has too many entries")
	}
	for _, name := range t.PlotNames {
		if len(name) > 0xFF {
			return telemetry.Config{}, fmt.Errorf("telemetry.plot_names entry longer than 255 bytes: %q", name)
		}
	}

	for _, s := range t.Channels {
		c, err := telemetry.ParseChannel(s)
		if err != nil {
			return telemetry.Config{}, fmt.Errorf("telemetry.channels: %w", err)
		}
		cfg.Channels = append(cfg.Channels, c)
	}

	mode, err := telemetry.ParseDebugMode(t.Debug)
	if err != nil {
		return telemetry.Config{}, fmt.Errorf("telemetry.debug: %w", err)
	}
	cfg.Debug = mode
	return cfg, nil
}

// DecoderOptions returns the decoder options selected by the device section
func (d DeviceConfig) DecoderOptions() []rclink.DecoderOption {
	opts := []rclink.DecoderOption{rclink.WithCapacity(d.BufferSize)}
	if d.StaleTimeout > 0 {
		opts = append(opts, rclink.WithStaleTimeout(d.StaleTimeout.Millis()))
	}
	return opts
}
