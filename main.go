// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rclink - RC link bridge
//
// Runs the bridge device side of the RC link protocol, and monitors, drives
// and records links from the application side.

package main

import (
	"os"

	"github.com/golang/glog"

	"github.com/Thermoquad/rclink/cmd"
)

func main() {
	err := cmd.Execute()
	glog.Flush()
	os.Exit(cmd.ExitCode(err))
}
