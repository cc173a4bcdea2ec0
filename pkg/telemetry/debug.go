// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

// DebugMode selects a telemetry channel whose values come from operator
// input instead of the sensors
type DebugMode int

const (
	DebugNone DebugMode = iota
	DebugPanel
	DebugIndicator
	DebugPlot
)

var (
	// ErrDebugMode is returned when debug values do not match the active mode
	ErrDebugMode = errors.New("debug mode mismatch")
	// ErrDebugFormat is returned for debug lines with the wrong shape
	ErrDebugFormat = errors.New("malformed debug line")
	// ErrDebugRange is returned for debug values outside the channel range
	ErrDebugRange = errors.New("debug value out of range")
)

// String implements fmt.Stringer
func (m DebugMode) String() string {
	switch m {
	case DebugNone:
		return "none"
	case DebugPanel:
		return "panel"
	case DebugIndicator:
		return "indicator"
	case DebugPlot:
		return "plot"
	default:
		return fmt.Sprintf("DebugMode(%d)", int(m))
	}
}

// ParseDebugMode parses a mode name as printed by String
func ParseDebugMode(s string) (DebugMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return DebugNone, nil
	case "panel":
		return DebugPanel, nil
	case "indicator":
		return DebugIndicator, nil
	case "plot":
		return DebugPlot, nil
	}
	return DebugNone, fmt.Errorf("unknown debug mode %q", s)
}

// Format describes the line expected in this mode, e.g. "l,r (0-9999)"
func (m DebugMode) Format() string {
	switch m {
	case DebugPanel:
		return fmt.Sprintf("l,r (0-%d)", rclink.PanelValueMax)
	case DebugIndicator:
		return fmt.Sprintf("a,b (0-%d)", rclink.IndicatorMax)
	case DebugPlot:
		return "v1,v2,v3 (0-255)"
	}
	return ""
}

func (m DebugMode) arity() (count int, max int) {
	switch m {
	case DebugPanel:
		return 2, rclink.PanelValueMax
	case DebugIndicator:
		return 2, rclink.IndicatorMax
	case DebugPlot:
		return rclink.PlotSampleCount, 0xFF
	}
	return 0, 0
}

// DebugValues are operator supplied values for one channel
type DebugValues struct {
	Mode   DebugMode
	Values []int
}

// ParseDebugLine parses a comma separated operator line for the given mode.
// Lines with the wrong number of values or values out of range are rejected.
func ParseDebugLine(mode DebugMode, line string) (DebugValues, error) {
	count, max := mode.arity()
	if count == 0 {
		return DebugValues{}, fmt.Errorf("%w: no debug channel selected", ErrDebugMode)
	}

	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != count {
		return DebugValues{}, fmt.Errorf("%w: want %s, got %q", ErrDebugFormat, mode.Format(), line)
	}

	values := make([]int, count)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return DebugValues{}, fmt.Errorf("%w: %q: %v", ErrDebugFormat, part, err)
		}
		if v < 0 || v > max {
			return DebugValues{}, fmt.Errorf("%w: %d not in 0-%d", ErrDebugRange, v, max)
		}
		values[i] = v
	}

	return DebugValues{Mode: mode, Values: values}, nil
}

// String renders the confirmation printed after values are applied
func (v DebugValues) String() string {
	parts := make([]string, len(v.Values))
	for i, n := range v.Values {
		if v.Mode == DebugIndicator {
			parts[i] = fmt.Sprintf("%d%%", n)
		} else {
			parts[i] = strconv.Itoa(n)
		}
	}
	name := v.Mode.String()
	return strings.ToUpper(name[:1]) + name[1:] + " debug set: " + strings.Join(parts, " , ")
}
