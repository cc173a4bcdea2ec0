// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rclink/pkg/transport"
)

func TestCheckLink_ClosedLinkReturnsExitCode(t *testing.T) {
	device, app := transport.NewPipe()
	defer device.Close()

	_, err := app.Write([]byte{0xCC, 0x22, 0x32, 0x32, 0x64})
	require.NoError(t, err)
	time.AfterFunc(50*time.Millisecond, func() { device.SetConnected(false) })

	var out bytes.Buffer
	err = checkLink(&out, device, 5*time.Second, true)
	require.Error(t, err)
	require.Equal(t, 1, ExitCode(err))
	require.Contains(t, out.String(), "Received 5 bytes: cc22323264")
	require.Contains(t, out.String(), "FAILED (connection closed)")

	// The caller still owns the channel and closes it
	require.NoError(t, device.Close())
}

func TestCheckLink_StableLinkPasses(t *testing.T) {
	device, _ := transport.NewPipe()
	defer device.Close()

	var out bytes.Buffer
	require.NoError(t, checkLink(&out, device, 50*time.Millisecond, true))
	require.Contains(t, out.String(), "PASSED")
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(errors.New("boom")))
	require.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 2})))
	require.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())
}
