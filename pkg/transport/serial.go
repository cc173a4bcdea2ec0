// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// ModemLine selects the modem status line that signals a connected peer
type ModemLine int

const (
	// PresenceNone treats an open port as connected
	PresenceNone ModemLine = iota
	PresenceDSR
	PresenceCTS
	PresenceDCD
)

// ParseModemLine parses "none", "dsr", "cts" or "dcd"
func ParseModemLine(s string) (ModemLine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PresenceNone, nil
	case "dsr":
		return PresenceDSR, nil
	case "cts":
		return PresenceCTS, nil
	case "dcd":
		return PresenceDCD, nil
	}
	return PresenceNone, fmt.Errorf("unknown modem line %q", s)
}

// SerialOptions configures a serial channel
type SerialOptions struct {
	Port     string
	BaudRate int
	Presence ModemLine
	// InboxSize bounds buffered receive bytes. Zero selects DefaultInboxSize.
	InboxSize int
}

// Serial is a Channel over a serial port, typically a Bluetooth SPP bridge
type Serial struct {
	port     serial.Port
	presence ModemLine
	*inbox

	writeMu sync.Mutex
	closed  atomic.Bool
	broken  atomic.Bool
	done    chan struct{}
}

// OpenSerial opens a serial port and starts its reader
func OpenSerial(opts SerialOptions) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(opts.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", opts.Port, err)
	}

	s := &Serial{
		port:     port,
		presence: opts.Presence,
		inbox:    newInbox(opts.InboxSize),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Serial) readLoop() {
	defer close(s.done)
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			if !s.closed.Load() {
				glog.Warningf("serial read failed: %v", err)
			}
			s.broken.Store(true)
			return
		}
		if n > 0 {
			s.push(buf[:n])
		}
	}
}

// Connected implements Channel
func (s *Serial) Connected() bool {
	if s.closed.Load() || s.broken.Load() {
		return false
	}
	if s.presence == PresenceNone {
		return true
	}

	bits, err := s.port.GetModemStatusBits()
	if err != nil {
		glog.V(2).Infof("modem status unavailable: %v", err)
		return false
	}
	switch s.presence {
	case PresenceDSR:
		return bits.DSR
	case PresenceCTS:
		return bits.CTS
	case PresenceDCD:
		return bits.DCD
	}
	return false
}

// ReadAvailable implements Channel
func (s *Serial) ReadAvailable(p []byte) int {
	return s.drain(p)
}

// Write implements Channel
func (s *Serial) Write(p []byte) (int, error) {
	if s.closed.Load() || s.broken.Load() {
		return 0, ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.port.Write(p)
}

// Close implements Channel
func (s *Serial) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.port.Close()
	<-s.done
	return err
}
