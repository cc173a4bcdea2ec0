// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyAxisRange AnomalyType = iota
	AnomalyUnknownEvent
	AnomalyPanelRange
	AnomalyIndicatorRange
	AnomalyPlotCount
	AnomalyConfigName
	AnomalyInputRange
)

// String implements fmt.Stringer
func (a AnomalyType) String() string {
	switch a {
	case AnomalyAxisRange:
		return "AXIS_RANGE"
	case AnomalyUnknownEvent:
		return "UNKNOWN_EVENT"
	case AnomalyPanelRange:
		return "PANEL_RANGE"
	case AnomalyIndicatorRange:
		return "INDICATOR_RANGE"
	case AnomalyPlotCount:
		return "PLOT_COUNT"
	case AnomalyConfigName:
		return "CONFIG_NAME"
	case AnomalyInputRange:
		return "INPUT_RANGE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a packet whose fields are outside the ranges
// the link produces
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks the field ranges of a decoded packet.
// Returns a slice of validation errors (empty if the packet is valid).
func ValidatePacket(p Packet) []ValidationError {
	switch pkt := p.(type) {
	case StatePacket:
		return validateState(pkt)
	case EventPacket:
		return validateEvent(pkt)
	case PanelPacket:
		return validatePanel(pkt)
	case IndicatorPacket:
		return validateIndicator(pkt)
	case PlotPacket:
		return validatePlot(pkt)
	case ConfigPacket:
		return validateConfig(pkt)
	case InputPacket:
		return validateInput(pkt)
	}
	return []ValidationError{}
}

func validateState(p StatePacket) []ValidationError {
	errors := []ValidationError{}

	axes := []struct {
		name  string
		value uint16
	}{
		{"left_stick_x", p.LeftStickX},
		{"left_stick_y", p.LeftStickY},
		{"right_stick_x", p.RightStickX},
		{"right_stick_y", p.RightStickY},
		{"left_knob", p.LeftKnob},
		{"right_knob", p.RightKnob},
	}
	for _, a := range axes {
		if a.value > AxisMax {
			errors = append(errors, ValidationError{
				Type:    AnomalyAxisRange,
				Message: fmt.Sprintf("%s out of range (%d, max %d)", a.name, a.value, AxisMax),
				Details: map[string]interface{}{"axis": a.name, "value": a.value, "max": AxisMax},
			})
		}
	}

	return errors
}

func validateEvent(p EventPacket) []ValidationError {
	if p.ID < EventOutput1 || p.ID > EventOutput4 {
		return []ValidationError{{
			Type:    AnomalyUnknownEvent,
			Message: fmt.Sprintf("Unknown event id %d", p.ID),
			Details: map[string]interface{}{"event_id": p.ID},
		}}
	}
	return []ValidationError{}
}

func validatePanel(p PanelPacket) []ValidationError {
	errors := []ValidationError{}
	if p.Left > PanelValueMax || p.Right > PanelValueMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyPanelRange,
			Message: fmt.Sprintf("Panel value out of range (L=%d, R=%d, max %d)", p.Left, p.Right, PanelValueMax),
			Details: map[string]interface{}{"left": p.Left, "right": p.Right, "max": PanelValueMax},
		})
	}
	return errors
}

func validateIndicator(p IndicatorPacket) []ValidationError {
	errors := []ValidationError{}
	if p.Analog > IndicatorMax || p.Battery > IndicatorMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyIndicatorRange,
			Message: fmt.Sprintf("Indicator out of range (analog=%d%%, battery=%d%%)", p.Analog, p.Battery),
			Details: map[string]interface{}{"analog": p.Analog, "battery": p.Battery, "max": IndicatorMax},
		})
	}
	return errors
}

func validatePlot(p PlotPacket) []ValidationError {
	errors := []ValidationError{}
	if p.Count != PlotSampleCount {
		errors = append(errors, ValidationError{
			Type:    AnomalyPlotCount,
			Message: fmt.Sprintf("Invalid plot count=%d (expected %d)", p.Count, PlotSampleCount),
			Details: map[string]interface{}{"count": p.Count, "expected": PlotSampleCount},
		})
	}
	return errors
}

func validateConfig(p ConfigPacket) []ValidationError {
	errors := []ValidationError{}
	for i, name := range p.Names {
		if name == "" {
			errors = append(errors, ValidationError{
				Type:    AnomalyConfigName,
				Message: fmt.Sprintf("Config channel %d has an empty name", i+1),
				Details: map[string]interface{}{"channel": i + 1},
			})
		}
	}
	return errors
}

func validateInput(p InputPacket) []ValidationError {
	errors := []ValidationError{}
	for i, v := range p.Analog {
		if v > AxisMax {
			errors = append(errors, ValidationError{
				Type:    AnomalyInputRange,
				Message: fmt.Sprintf("Analog input %d out of range (%d, max %d)", i, v, AxisMax),
				Details: map[string]interface{}{"input": i, "value": v, "max": AxisMax},
			})
		}
	}
	for i, v := range p.Digital {
		if v > 1 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInputRange,
				Message: fmt.Sprintf("Digital input %d not boolean (%d)", i, v),
				Details: map[string]interface{}{"input": i, "value": v},
			})
		}
	}
	return errors
}
