// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Recorder keeps the last value written to every output in memory. It is
// safe for concurrent use so a console can inspect levels while the control
// loop writes them.
type Recorder struct {
	mu     sync.Mutex
	duty   map[Output]uint32
	level  map[Output]bool
	writes uint64
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{duty: make(map[Output]uint32), level: make(map[Output]bool)}
}

// SetDuty implements Outputs
func (r *Recorder) SetDuty(o Output, duty uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duty[o] = duty
	r.writes++
}

// SetLevel implements Outputs
func (r *Recorder) SetLevel(o Output, high bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level[o] = high
	r.writes++
}

// Duty returns the last duty written to o
func (r *Recorder) Duty(o Output) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duty[o]
}

// Level returns the last level written to o
func (r *Recorder) Level(o Output) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level[o]
}

// Writes returns the number of writes seen
func (r *Recorder) Writes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// String lists every output value, one per line, in output order
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	outputs := make([]Output, 0, len(r.duty)+len(r.level))
	for o := range r.duty {
		outputs = append(outputs, o)
	}
	for o := range r.level {
		outputs = append(outputs, o)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i] < outputs[j] })

	var b strings.Builder
	for _, o := range outputs {
		if d, ok := r.duty[o]; ok {
			fmt.Fprintf(&b, "%-12s GPIO%-2d duty=%d\n", o, o.GPIO(), d)
		} else {
			state := "LOW"
			if r.level[o] {
				state = "HIGH"
			}
			fmt.Fprintf(&b, "%-12s GPIO%-2d %s\n", o, o.GPIO(), state)
		}
	}
	return b.String()
}

// LogOutputs logs output changes through glog and forwards every write to an
// optional next driver
type LogOutputs struct {
	next  Outputs
	duty  map[Output]uint32
	level map[Output]bool
}

// NewLogOutputs creates a logging driver in front of next, which may be nil
func NewLogOutputs(next Outputs) *LogOutputs {
	return &LogOutputs{next: next, duty: make(map[Output]uint32), level: make(map[Output]bool)}
}

// SetDuty implements Outputs
func (l *LogOutputs) SetDuty(o Output, duty uint32) {
	if prev, ok := l.duty[o]; !ok || prev != duty {
		l.duty[o] = duty
		glog.V(1).Infof("%s duty %d", o, duty)
	}
	if l.next != nil {
		l.next.SetDuty(o, duty)
	}
}

// SetLevel implements Outputs
func (l *LogOutputs) SetLevel(o Output, high bool) {
	if prev, ok := l.level[o]; !ok || prev != high {
		l.level[o] = high
		if high {
			glog.V(1).Infof("%s HIGH", o)
		} else {
			glog.V(1).Infof("%s LOW", o)
		}
	}
	if l.next != nil {
		l.next.SetLevel(o, high)
	}
}
