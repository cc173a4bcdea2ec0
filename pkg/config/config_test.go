// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rclink/pkg/telemetry"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rclink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_MatchesScheduler(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	got, err := cfg.Telemetry.Scheduler()
	require.NoError(t, err)
	if diff := cmp.Diff(telemetry.DefaultConfig(), got); diff != "" {
		t.Errorf("scheduler config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, exists, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, 115200, cfg.Device.Baud)

	_, err = Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[device]
port = "/dev/ttyUSB0"
presence = "dsr"
stale_timeout = "250ms"

[telemetry]
plot_interval = "20ms"
plot_names = ["Volts", "Amps"]
channels = ["panel", "plot"]
debug = "plot"

[actuation]
pulse_width = "75ms"

[mqtt]
broker = "tcp://localhost:1883"
qos = 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path())
	require.Equal(t, "/dev/ttyUSB0", cfg.Device.Port)
	require.Equal(t, 115200, cfg.Device.Baud)
	require.Equal(t, 250*time.Millisecond, cfg.Device.StaleTimeout.Std())
	require.Equal(t, uint32(75), cfg.Actuation.PulseWidth.Millis())
	require.Equal(t, "rclink/telemetry", cfg.MQTT.Topic)

	sched, err := cfg.Telemetry.Scheduler()
	require.NoError(t, err)
	require.Equal(t, uint32(20), sched.PlotInterval)
	require.Equal(t, uint32(500), sched.IndicatorInterval)
	require.Equal(t, []telemetry.Channel{telemetry.ChannelPanel, telemetry.ChannelPlot}, sched.Channels)
	require.Equal(t, telemetry.DebugPlot, sched.Debug)
	require.Equal(t, []string{"Volts", "Amps"}, sched.PlotNames)

	require.Len(t, cfg.Device.DecoderOptions(), 2)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[device\n", "parse config"},
		{"duration", "[device]\nstale_timeout = \"soon\"\n", "parse config"},
		{"presence", "[device]\npresence = \"rts\"\n", "device.presence"},
		{"buffer", "[device]\nbuffer_size = 8\n", "device.buffer_size"},
		{"channel", "[telemetry]\nchannels = [\"panel\", \"radar\"]\n", "telemetry.channels"},
		{"debug", "[telemetry]\ndebug = \"loud\"\n", "telemetry.debug"},
		{"sensors", "[sensors]\nsource = \"i2c\"\n", "sensors.source"},
		{"qos", "[mqtt]\nqos = 3\n", "mqtt.qos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Device.URL = "ws://bridge.local/ws"
	cfg.Telemetry.Debug = "panel"

	path := filepath.Join(t.TempDir(), "nested", "rclink.toml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded, cmp.AllowUnexported(Config{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
