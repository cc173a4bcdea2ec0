// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package actuation turns decoded control state into output levels: PWM duty
// for the steering servo, drive motors, LED and buzzer, discrete levels for
// the switch lines, and timed pulses for button events.
package actuation

import (
	"fmt"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

// Output identifies a physical output line
type Output int

const (
	OutputSteering Output = iota
	OutputMotorLeft
	OutputMotorRight
	OutputLED
	OutputBuzzer
	OutputSwitch1
	OutputSwitch2
	OutputSwitch3
	OutputSwitch4
	OutputSwitch5
	OutputSwitch6
	OutputEvent1
	OutputEvent2
	OutputEvent3
	OutputEvent4
)

// SwitchOutputs are driven by switch lines 1-6. Lines 7 and 8 are decoded
// but not wired.
var SwitchOutputs = [6]Output{OutputSwitch1, OutputSwitch2, OutputSwitch3, OutputSwitch4, OutputSwitch5, OutputSwitch6}

// EventOutputs are pulsed by events 1-4
var EventOutputs = [4]Output{OutputEvent1, OutputEvent2, OutputEvent3, OutputEvent4}

var outputInfo = map[Output]struct {
	name string
	gpio int
}{
	OutputSteering:   {"steering", 18},
	OutputMotorLeft:  {"motor_left", 19},
	OutputMotorRight: {"motor_right", 21},
	OutputLED:        {"led", 2},
	OutputBuzzer:     {"buzzer", 27},
	OutputSwitch1:    {"switch_1", 32},
	OutputSwitch2:    {"switch_2", 33},
	OutputSwitch3:    {"switch_3", 25},
	OutputSwitch4:    {"switch_4", 26},
	OutputSwitch5:    {"switch_5", 4},
	OutputSwitch6:    {"switch_6", 5},
	OutputEvent1:     {"event_1", 12},
	OutputEvent2:     {"event_2", 13},
	OutputEvent3:     {"event_3", 14},
	OutputEvent4:     {"event_4", 15},
}

// String implements fmt.Stringer
func (o Output) String() string {
	if info, ok := outputInfo[o]; ok {
		return info.name
	}
	return fmt.Sprintf("Output(%d)", int(o))
}

// GPIO returns the pin number the output is wired to on the reference board
func (o Output) GPIO() int {
	return outputInfo[o].gpio
}

// PWM ranges
const (
	// Servo duty at 16-bit resolution and 50 Hz, about 1 ms to 2 ms
	ServoDutyMin = 3277
	ServoDutyMax = 6553

	// 8-bit duty for motors, LED and buzzer
	DutyMax = 255

	// DefaultPulseWidth is how long an event output stays high, in milliseconds
	DefaultPulseWidth = 50
)

// Outputs drives output lines. Implementations must not block.
type Outputs interface {
	SetDuty(o Output, duty uint32)
	SetLevel(o Output, high bool)
}

// Clock is a wrapping millisecond counter
type Clock interface {
	Millis() uint32
}

type pulse struct {
	active bool
	start  uint32
}

// Controller applies state and event packets to Outputs. It implements
// rclink.ActuationSink and rclink.EventHandler.
//
// Event pulses end in Update rather than by sleeping, so HandleEvent returns
// immediately.
type Controller struct {
	out        Outputs
	clock      Clock
	pulseWidth uint32
	pulses     [len(EventOutputs)]pulse
}

// NewController creates a controller with the default pulse width
func NewController(out Outputs, clock Clock) *Controller {
	return &Controller{out: out, clock: clock, pulseWidth: DefaultPulseWidth}
}

// SetPulseWidth changes the event pulse width in milliseconds
func (c *Controller) SetPulseWidth(ms uint32) {
	c.pulseWidth = ms
}

// ApplyState implements rclink.ActuationSink
func (c *Controller) ApplyState(p rclink.StatePacket) {
	c.out.SetDuty(OutputSteering, uint32(rclink.MapAxis(p.LeftStickX, ServoDutyMax-ServoDutyMin)+ServoDutyMin))
	c.out.SetDuty(OutputMotorLeft, uint32(rclink.MapAxis(p.LeftStickY, DutyMax)))
	c.out.SetDuty(OutputMotorRight, uint32(rclink.MapAxis(p.RightStickY, DutyMax)))

	c.out.SetDuty(OutputLED, uint32(rclink.MapAxis(p.LeftKnob, DutyMax)))
	c.out.SetDuty(OutputBuzzer, uint32(rclink.MapAxis(p.RightKnob, DutyMax)))

	for i, o := range SwitchOutputs {
		c.out.SetLevel(o, p.Switches.Line(i+1))
	}
}

// HandleEvent implements rclink.EventHandler. Events 1-4 raise their output
// for the pulse width; a repeat while high restarts the pulse. Other ids are
// ignored.
func (c *Controller) HandleEvent(id uint8) {
	if id < rclink.EventOutput1 || id > rclink.EventOutput4 {
		return
	}
	i := int(id - rclink.EventOutput1)
	c.pulses[i] = pulse{active: true, start: c.clock.Millis()}
	c.out.SetLevel(EventOutputs[i], true)
}

// Update ends pulses whose width has elapsed at now
func (c *Controller) Update(now uint32) {
	for i := range c.pulses {
		p := &c.pulses[i]
		if p.active && now-p.start >= c.pulseWidth {
			p.active = false
			c.out.SetLevel(EventOutputs[i], false)
		}
	}
}

// Pulsing reports whether the output for event id is currently high
func (c *Controller) Pulsing(id uint8) bool {
	if id < rclink.EventOutput1 || id > rclink.EventOutput4 {
		return false
	}
	return c.pulses[id-rclink.EventOutput1].active
}
