// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/transport"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type model struct {
	connInfo      string
	ch            transport.Channel
	showAll       bool
	stats         *rclink.Statistics
	eventLog      []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	linkLost      bool

	// Latest value per channel
	panel     *rclink.PanelPacket
	indicator *rclink.IndicatorPacket
	plot      *rclink.PlotPacket
	input     *rclink.InputPacket
	sensor    *rclink.SensorPacket
	plotNames []string
	lastSeen  map[rclink.Kind]time.Time

	command textinput.Model
}

// Messages
type tickMsg time.Time
type packetMsg monitorEvent
type connectionLostMsg struct{}

func initialModel(connInfo string, ch transport.Channel, showAll bool) model {
	ti := textinput.New()
	ti.Placeholder = "e 1 | s 2048 2048 2048 2048 0 0 0x00"
	ti.CharLimit = 64
	ti.Width = 48
	ti.Prompt = "send> "
	ti.Focus()

	return model{
		connInfo:      connInfo,
		ch:            ch,
		showAll:       showAll,
		stats:         rclink.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		lastSeen:      make(map[rclink.Kind]time.Time),
		command:       ti,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		textinput.Blink,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.sendCommand(m.command.Value())
			m.command.Reset()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case connectionLostMsg:
		m.linkLost = true
		m.addLogEntry("Connection lost", true)

	case packetMsg:
		m.handlePacket(monitorEvent(msg))
		return m, nil
	}

	var cmd tea.Cmd
	m.command, cmd = m.command.Update(msg)
	return m, cmd
}

func (m *model) handlePacket(ev monitorEvent) {
	switch {
	case ev.evicted > 0:
		m.stats.AddEvicted(ev.evicted)
		m.addLogEntry(fmt.Sprintf("Receive buffer overflow, %d bytes dropped", ev.evicted), true)
		return
	case ev.decodeErr != nil:
		m.stats.Update(nil, ev.decodeErr, nil)
		m.addLogEntry(fmt.Sprintf("REJECTED: %v", ev.decodeErr), true)
		return
	}

	m.stats.Update(ev.packet, nil, ev.validationErrors)
	m.lastSeen[ev.packet.Kind()] = ev.at

	switch p := ev.packet.(type) {
	case rclink.PanelPacket:
		m.panel = &p
	case rclink.IndicatorPacket:
		m.indicator = &p
	case rclink.PlotPacket:
		m.plot = &p
	case rclink.InputPacket:
		m.input = &p
	case rclink.SensorPacket:
		m.sensor = &p
	case rclink.ConfigPacket:
		m.plotNames = p.Names
		m.addLogEntry(fmt.Sprintf("Plot channels: %s", strings.Join(p.Names, ", ")), false)
	}

	kind := ev.packet.Kind().String()
	if len(ev.validationErrors) > 0 {
		for _, err := range ev.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", kind, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", kind), false)
	}
}

func (m *model) sendCommand(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	frame, err := parsePacketCommand(strings.Fields(line))
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	if _, err := m.ch.Write(frame); err != nil {
		m.addLogEntry(fmt.Sprintf("TX failed: %v", err), true)
		return
	}
	m.addLogEntry("TX "+rclink.FormatHex(frame), false)
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// plotLabel names plot sample i using the last config packet
func (m model) plotLabel(i int) string {
	if i < len(m.plotNames) && m.plotNames[i] != "" {
		return m.plotNames[i]
	}
	return fmt.Sprintf("Plot %d", i+1)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	noticeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RCLINK - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.linkLost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	totalErrors := m.stats.ChecksumErrors + m.stats.DecodeErrors + m.stats.AnomalousValues
	var validPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
	}

	var stats strings.Builder
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", totalErrors)),
	))
	if m.stats.ChecksumErrors > 0 || m.stats.EvictedBytes > 0 {
		stats.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			labelStyle.Render("Evicted Bytes:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.EvictedBytes)),
		))
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Packet Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Telemetry
	var tel strings.Builder
	if m.panel != nil {
		tel.WriteString(fmt.Sprintf("%s %s   %s %s   %s 0x%02X\n",
			labelStyle.Render("Panel L:"), valueStyle.Render(fmt.Sprintf("%4d", m.panel.Left)),
			labelStyle.Render("R:"), valueStyle.Render(fmt.Sprintf("%4d", m.panel.Right)),
			labelStyle.Render("States:"), m.panel.States,
		))
	}
	if m.indicator != nil {
		tel.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Analog:"), valueStyle.Render(fmt.Sprintf("%3d%%", m.indicator.Analog)),
			labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%3d%%", m.indicator.Battery)),
		))
	}
	if m.plot != nil {
		parts := make([]string, 0, rclink.PlotSampleCount)
		for i := 0; i < int(m.plot.Count) && i < rclink.PlotSampleCount; i++ {
			parts = append(parts, fmt.Sprintf("%s %s",
				labelStyle.Render(m.plotLabel(i)+":"), valueStyle.Render(fmt.Sprintf("%3d", m.plot.Samples[i]))))
		}
		tel.WriteString(strings.Join(parts, "   ") + "\n")
	}
	if m.input != nil {
		tel.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Analog In:"), valueStyle.Render(fmt.Sprintf("%v", m.input.Analog)),
			labelStyle.Render("Digital:"), valueStyle.Render(fmt.Sprintf("%v", m.input.Digital)),
		))
	}
	if m.sensor != nil {
		tel.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Temp:"), valueStyle.Render(fmt.Sprintf("0x%04X", m.sensor.Temperature)),
			labelStyle.Render("Accel:"), valueStyle.Render(fmt.Sprintf("%d %d %d", m.sensor.AccelX, m.sensor.AccelY, m.sensor.AccelZ)),
		))
	}
	if tel.Len() > 0 {
		s.WriteString(labelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(strings.TrimSuffix(tel.String(), "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(m.command.View())
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), noticeStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
