// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/Thermoquad/rclink/pkg/actuation"
	"github.com/Thermoquad/rclink/pkg/device"
)

// runConsole starts the operator console. Lines that are not commands are
// debug values for the active mode. The returned context ends when the
// console exits.
func runConsole(ctx context.Context, rt *device.Runtime, outputs *actuation.Recorder) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	shell := ishell.New()
	shell.SetPrompt("rclink> ")

	// post runs fn on the runtime loop and waits for it
	post := func(c *ishell.Context, fn func()) {
		done := make(chan struct{})
		if !rt.Post(func() { fn(); close(done) }) {
			c.Err(fmt.Errorf("runtime busy"))
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "mode",
		Help: "show the debug mode and the expected input",
		Func: func(c *ishell.Context) {
			post(c, func() {
				mode := rt.Scheduler().DebugMode()
				c.Printf("debug mode: %s\n", mode)
				if f := mode.Format(); f != "" {
					c.Printf("enter: %s\n", f)
				}
			})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stats",
		Help: "show receive and telemetry statistics",
		Func: func(c *ishell.Context) {
			post(c, func() {
				c.Print(rt.Statistics().String())
				s := rt.Scheduler().Stats()
				c.Printf("Sent: panel=%d indicator=%d plot=%d input=%d sensor=%d config=%d (write errors %d)\n",
					s.Panel, s.Indicator, s.Plot, s.Input, s.Sensor, s.Config, s.WriteErrors)
			})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:    "outputs",
		Aliases: []string{"out"},
		Help:    "show the current output levels",
		Func: func(c *ishell.Context) {
			c.Print(outputs.String())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "config",
		Help: "send the plot channel names now",
		Func: func(c *ishell.Context) {
			post(c, func() {
				if err := rt.Scheduler().SendConfig(); err != nil {
					c.Err(err)
					return
				}
				c.Println("config sent")
			})
		},
	})

	shell.NotFound(func(c *ishell.Context) {
		line := strings.Join(c.RawArgs, " ")
		post(c, func() {
			v, err := rt.Scheduler().HandleDebugLine(line)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(v.String())
		})
	})

	go func() {
		defer cancel()
		shell.Run()
	}()
	go func() {
		<-ctx.Done()
		shell.Close()
	}()
	return ctx
}
