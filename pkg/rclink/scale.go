// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

// Map linearly re-maps x from [inMin, inMax] to [outMin, outMax] with integer
// arithmetic. Values outside the input range are not clamped. Returns outMin
// when the input range is empty.
func Map(x, inMin, inMax, outMin, outMax int64) int64 {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// MapAxis maps a raw axis reading onto [0, outMax], clamping readings above
// AxisMax first.
func MapAxis(raw uint16, outMax int64) int64 {
	v := int64(raw)
	if v > AxisMax {
		v = AxisMax
	}
	return Map(v, AxisMin, AxisMax, 0, outMax)
}
