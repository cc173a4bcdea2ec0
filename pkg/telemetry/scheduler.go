// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry schedules the packets the device sends back to the
// application.
//
// Four channels are periodic (indicator, plot, input and sensor). The panel
// channel is change-driven: a new value is sent immediately and repeated for a
// short window to ride out packet loss. The config packet is sent on request.
// All timing uses a wrapping millisecond counter supplied by the caller, so
// the scheduler never blocks and never reads the wall clock itself.
package telemetry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

// ErrNotConnected is returned when a send is requested with no peer attached
var ErrNotConnected = errors.New("no peer connected")

// Channel identifies a scheduled telemetry stream
type Channel int

const (
	ChannelPanel Channel = iota
	ChannelIndicator
	ChannelPlot
	ChannelInput
	ChannelSensor
	numChannels
)

// AllChannels lists every scheduled channel
var AllChannels = []Channel{ChannelPanel, ChannelIndicator, ChannelPlot, ChannelInput, ChannelSensor}

// String implements fmt.Stringer
func (c Channel) String() string {
	switch c {
	case ChannelPanel:
		return "panel"
	case ChannelIndicator:
		return "indicator"
	case ChannelPlot:
		return "plot"
	case ChannelInput:
		return "input"
	case ChannelSensor:
		return "sensor"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// ParseChannel parses a channel name as printed by String
func ParseChannel(s string) (Channel, error) {
	for _, c := range AllChannels {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown telemetry channel %q", s)
}

// Config holds scheduler timing and content. Intervals are in milliseconds.
type Config struct {
	IndicatorInterval uint32
	PlotInterval      uint32
	InputInterval     uint32
	SensorInterval    uint32

	PanelResendWindow   uint32
	PanelResendInterval uint32
	PanelStates         uint8

	SensorFlags uint8
	PlotNames   []string

	Channels []Channel
	Debug    DebugMode
}

// DefaultConfig returns the timing used by the device firmware
func DefaultConfig() Config {
	return Config{
		IndicatorInterval:   500,
		PlotInterval:        50,
		InputInterval:       50,
		SensorInterval:      100,
		PanelResendWindow:   300,
		PanelResendInterval: 100,
		PanelStates:         rclink.DefaultPanelStates,
		SensorFlags:         rclink.DefaultSensorFlags,
		PlotNames:           []string{"Volts", "Amps", "RPMs"},
		Channels:            AllChannels,
	}
}

// Stats counts packets handed to the sender
type Stats struct {
	Panel       uint64
	Indicator   uint64
	Plot        uint64
	Input       uint64
	Sensor      uint64
	Config      uint64
	WriteErrors uint64
}

// panelState tracks the change-driven panel channel
type panelState struct {
	lastSent    [2]uint16
	pending     [2]uint16
	windowOpen  bool
	windowStart uint32
	lastTx      uint32
	force       bool
}

// Scheduler produces telemetry packets on a fixed cadence.
//
// A Scheduler is not safe for concurrent use. Poll, SendConfig and
// SetDebugValues must be called from the same goroutine.
type Scheduler struct {
	cfg     Config
	sensors SensorSource
	out     Sender
	enabled [numChannels]bool

	lastIndicator uint32
	lastPlot      uint32
	lastInput     uint32
	lastSensor    uint32
	panel         panelState

	debug DebugValues

	// OnWriteError is called when the sender rejects a packet. Sends are
	// best effort and the schedule continues either way.
	OnWriteError func(k rclink.Kind, err error)

	stats Stats
}

// NewScheduler creates a scheduler reading from sensors and writing to out.
// Timers start at zero, so the first periodic packets go out once the clock
// passes their interval.
func NewScheduler(cfg Config, sensors SensorSource, out Sender) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		sensors: sensors,
		out:     out,
	}
	for _, c := range cfg.Channels {
		if c >= 0 && c < numChannels {
			s.enabled[c] = true
		}
	}
	s.debug = DebugValues{Mode: cfg.Debug, Values: make([]int, 3)}
	return s
}

// Start aligns every periodic timer to now
func (s *Scheduler) Start(now uint32) {
	s.lastIndicator = now
	s.lastPlot = now
	s.lastInput = now
	s.lastSensor = now
}

// Stats returns a snapshot of the send counters
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// DebugMode returns the active debug mode
func (s *Scheduler) DebugMode() DebugMode {
	return s.debug.Mode
}

// SetDebugValues replaces the operator values of the active debug channel
func (s *Scheduler) SetDebugValues(v DebugValues) error {
	if v.Mode != s.debug.Mode || v.Mode == DebugNone {
		return fmt.Errorf("%w: scheduler in %s mode, values for %s", ErrDebugMode, s.debug.Mode, v.Mode)
	}
	count, _ := v.Mode.arity()
	if len(v.Values) != count {
		return fmt.Errorf("%w: want %d values, got %d", ErrDebugFormat, count, len(v.Values))
	}
	s.debug.Values = append([]int(nil), v.Values...)
	return nil
}

// HandleDebugLine parses an operator line for the active mode and applies it
func (s *Scheduler) HandleDebugLine(line string) (DebugValues, error) {
	v, err := ParseDebugLine(s.debug.Mode, line)
	if err != nil {
		return DebugValues{}, err
	}
	return v, s.SetDebugValues(v)
}

// SendConfig sends the plot channel names
func (s *Scheduler) SendConfig() error {
	if !s.out.Connected() {
		return ErrNotConnected
	}
	if s.send(rclink.ConfigPacket{Names: s.cfg.PlotNames}) {
		s.stats.Config++
	}
	return nil
}

// Poll sends whatever is due at now. It does nothing while disconnected;
// timers keep their values so overdue channels fire on the next connected
// poll.
func (s *Scheduler) Poll(now uint32) {
	if !s.out.Connected() {
		return
	}

	if s.enabled[ChannelPanel] {
		s.pollPanel(now)
	}

	if s.enabled[ChannelIndicator] && Elapsed(now, s.lastIndicator) > s.cfg.IndicatorInterval {
		s.lastIndicator = now
		if s.send(s.indicatorPacket()) {
			s.stats.Indicator++
		}
	}

	if s.enabled[ChannelPlot] && Elapsed(now, s.lastPlot) > s.cfg.PlotInterval {
		s.lastPlot = now
		if s.send(s.plotPacket()) {
			s.stats.Plot++
		}
	}

	if s.enabled[ChannelInput] && Elapsed(now, s.lastInput) >= s.cfg.InputInterval {
		s.lastInput = now
		if s.send(s.inputPacket()) {
			s.stats.Input++
		}
	}

	if s.enabled[ChannelSensor] && Elapsed(now, s.lastSensor) >= s.cfg.SensorInterval {
		s.lastSensor = now
		if s.send(s.sensorPacket()) {
			s.stats.Sensor++
		}
	}
}

// pollPanel sends a changed panel value at once, repeats it every resend
// interval while the window is open, and commits it when the window closes.
// A change is measured against the pending value while a window is open so a
// steady input does not keep restarting it.
func (s *Scheduler) pollPanel(now uint32) {
	p := &s.panel
	value := s.panelValues()

	ref := p.lastSent
	if p.windowOpen {
		ref = p.pending
	}
	if value != ref {
		p.pending = value
		p.windowOpen = true
		p.windowStart = now
		p.force = true
	}

	if !p.windowOpen {
		return
	}

	if Elapsed(now, p.windowStart) >= s.cfg.PanelResendWindow {
		p.lastSent = p.pending
		p.windowOpen = false
		return
	}

	if p.force || Elapsed(now, p.lastTx) >= s.cfg.PanelResendInterval {
		p.force = false
		p.lastTx = now
		pkt := rclink.PanelPacket{Left: p.pending[0], Right: p.pending[1], States: s.cfg.PanelStates}
		if s.send(pkt) {
			s.stats.Panel++
		}
	}
}

func (s *Scheduler) panelValues() [2]uint16 {
	if s.debug.Mode == DebugPanel {
		return [2]uint16{uint16(s.debug.Values[0]), uint16(s.debug.Values[1])}
	}
	return [2]uint16{
		uint16(rclink.MapAxis(s.sensors.Analog(PinA34), rclink.PanelValueMax)),
		uint16(rclink.MapAxis(s.sensors.Analog(PinA35), rclink.PanelValueMax)),
	}
}

func (s *Scheduler) indicatorPacket() rclink.IndicatorPacket {
	if s.debug.Mode == DebugIndicator {
		return rclink.IndicatorPacket{Analog: uint8(s.debug.Values[0]), Battery: uint8(s.debug.Values[1])}
	}
	return rclink.IndicatorPacket{
		Analog:  uint8(rclink.MapAxis(s.sensors.Analog(PinA36), rclink.IndicatorMax)),
		Battery: uint8(rclink.MapAxis(s.sensors.Analog(PinA39), rclink.IndicatorMax)),
	}
}

func (s *Scheduler) plotPacket() rclink.PlotPacket {
	p := rclink.PlotPacket{Count: rclink.PlotSampleCount}
	if s.debug.Mode == DebugPlot {
		for i := range p.Samples {
			p.Samples[i] = uint8(s.debug.Values[i])
		}
		return p
	}
	for i, pin := range [3]Pin{PinA34, PinA35, PinA32} {
		p.Samples[i] = uint8(rclink.MapAxis(s.sensors.Analog(pin), 0xFF))
	}
	return p
}

func (s *Scheduler) inputPacket() rclink.InputPacket {
	var p rclink.InputPacket
	for i, pin := range AnalogPins {
		p.Analog[i] = s.sensors.Analog(pin)
	}
	for i, pin := range DigitalPins {
		if s.sensors.Digital(pin) {
			p.Digital[i] = 1
		}
	}
	return p
}

func (s *Scheduler) sensorPacket() rclink.SensorPacket {
	x, y, z := s.sensors.Acceleration()
	return rclink.SensorPacket{
		Temperature: s.sensors.Temperature(),
		AccelX:      x,
		AccelY:      y,
		AccelZ:      z,
		Flags:       s.cfg.SensorFlags,
	}
}

// send writes one packet and reports whether the sender accepted it
func (s *Scheduler) send(p rclink.Packet) bool {
	if _, err := s.out.Write(p.Encode()); err != nil {
		s.stats.WriteErrors++
		if s.OnWriteError != nil {
			s.OnWriteError(p.Kind(), err)
		}
		return false
	}
	return true
}
