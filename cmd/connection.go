// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/rclink/pkg/capture"
	"github.com/Thermoquad/rclink/pkg/transport"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("RCLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenChannel opens either a serial or WebSocket client channel based on
// flags and the config file
func OpenChannel(ctx context.Context) (transport.Channel, string, error) {
	dev := cfg.Device

	if dev.URL != "" {
		password := ""
		if dev.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ch, err := transport.Dial(ctx, transport.DialOptions{
			URL:        dev.URL,
			Username:   dev.Username,
			Password:   password,
			SkipVerify: wsNoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("WebSocket: %s", transport.RedactURL(dev.URL)), nil
	}

	if dev.Port != "" {
		line, err := transport.ParseModemLine(dev.Presence)
		if err != nil {
			return nil, "", err
		}
		ch, err := transport.OpenSerial(transport.SerialOptions{
			Port:     dev.Port,
			BaudRate: dev.Baud,
			Presence: line,
		})
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("Serial: %s @ %d baud", dev.Port, dev.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// openCapture wraps ch in a capture tap when path is set. The returned close
// function flushes and closes the capture file.
func openCapture(ch transport.Channel, path, source string) (transport.Channel, func(), error) {
	if path == "" {
		return ch, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create capture: %w", err)
	}
	w, err := capture.NewWriter(f, source)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	fmt.Printf("Capturing to %s (session %s)\n", path, w.Header().Session)
	return capture.NewTap(ch, w), func() { f.Close() }, nil
}
