// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensors provides SensorSource implementations for running the
// device runtime away from real hardware.
package sensors

import (
	"math"
	"sync"

	"github.com/Thermoquad/rclink/pkg/telemetry"
)

// Fixed returns readings set by the caller. It is safe for concurrent use so
// an operator console can change readings while the runtime polls.
type Fixed struct {
	mu      sync.RWMutex
	analog  map[telemetry.Pin]uint16
	digital map[telemetry.Pin]bool
	temp    uint16
	accel   [3]int16
}

// NewFixed creates a source with every reading at zero
func NewFixed() *Fixed {
	return &Fixed{
		analog:  make(map[telemetry.Pin]uint16),
		digital: make(map[telemetry.Pin]bool),
	}
}

// SetAnalog sets the reading of an analog pin
func (f *Fixed) SetAnalog(pin telemetry.Pin, v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analog[pin] = v
}

// SetDigital sets whether a digital input is active
func (f *Fixed) SetDigital(pin telemetry.Pin, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digital[pin] = active
}

// SetTemperature sets the raw temperature register
func (f *Fixed) SetTemperature(v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temp = v
}

// SetAcceleration sets the raw accelerometer axes
func (f *Fixed) SetAcceleration(x, y, z int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accel = [3]int16{x, y, z}
}

// Analog implements telemetry.SensorSource
func (f *Fixed) Analog(pin telemetry.Pin) uint16 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.analog[pin]
}

// Digital implements telemetry.SensorSource
func (f *Fixed) Digital(pin telemetry.Pin) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.digital[pin]
}

// Temperature implements telemetry.SensorSource
func (f *Fixed) Temperature() uint16 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.temp
}

// Acceleration implements telemetry.SensorSource
func (f *Fixed) Acceleration() (x, y, z int16) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.accel[0], f.accel[1], f.accel[2]
}

// Simulated produces slowly varying readings derived from a clock. Each
// analog pin follows a sine wave with its own phase, digital inputs toggle
// on staggered square waves and the accelerometer traces a circle.
type Simulated struct {
	clock  telemetry.Clock
	period uint32
}

// DefaultPeriod is the waveform period of Simulated in milliseconds
const DefaultPeriod = 10_000

// NewSimulated creates a simulated source. A zero period selects
// DefaultPeriod.
func NewSimulated(clock telemetry.Clock, periodMs uint32) *Simulated {
	if periodMs == 0 {
		periodMs = DefaultPeriod
	}
	return &Simulated{clock: clock, period: periodMs}
}

var phases = map[telemetry.Pin]float64{
	telemetry.PinA32: 0.0,
	telemetry.PinA34: 0.2,
	telemetry.PinA35: 0.4,
	telemetry.PinA36: 0.6,
	telemetry.PinA39: 0.8,
}

// fraction returns the position in the current period, in [0, 1)
func (s *Simulated) fraction() float64 {
	return float64(s.clock.Millis()%s.period) / float64(s.period)
}

// Analog implements telemetry.SensorSource
func (s *Simulated) Analog(pin telemetry.Pin) uint16 {
	angle := 2 * math.Pi * (s.fraction() + phases[pin])
	return uint16(math.Round((math.Sin(angle) + 1) / 2 * 4095))
}

// Digital implements telemetry.SensorSource
func (s *Simulated) Digital(pin telemetry.Pin) bool {
	offset := uint32(pin) * s.period / 32
	return (s.clock.Millis()+offset)%s.period < s.period/2
}

// Temperature implements telemetry.SensorSource. The value drifts around a
// room temperature reading of the TMP102 style register.
func (s *Simulated) Temperature() uint16 {
	base := 25.0 + 2*math.Sin(2*math.Pi*s.fraction())
	return uint16(base/0.0625) << 4
}

// Acceleration implements telemetry.SensorSource. One g is 16384 counts.
func (s *Simulated) Acceleration() (x, y, z int16) {
	angle := 2 * math.Pi * s.fraction()
	return int16(16384 * math.Cos(angle)), int16(16384 * math.Sin(angle)), 0
}
