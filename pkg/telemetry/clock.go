// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"sync/atomic"
	"time"
)

// Clock is a wrapping millisecond counter
type Clock interface {
	Millis() uint32
}

// Elapsed returns the milliseconds from then to now. The subtraction wraps so
// the result stays correct across a counter rollover.
func Elapsed(now, then uint32) uint32 {
	return now - then
}

// SystemClock counts milliseconds since it was created
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis implements Clock
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// FakeClock is a manually advanced clock for tests and simulations
type FakeClock struct {
	now atomic.Uint32
}

// NewFakeClock creates a fake clock at the given time
func NewFakeClock(start uint32) *FakeClock {
	c := &FakeClock{}
	c.now.Store(start)
	return c
}

// Millis implements Clock
func (c *FakeClock) Millis() uint32 {
	return c.now.Load()
}

// Set moves the clock to t
func (c *FakeClock) Set(t uint32) {
	c.now.Store(t)
}

// Advance moves the clock forward by ms, wrapping at 2^32
func (c *FakeClock) Advance(ms uint32) uint32 {
	return c.now.Add(ms)
}
