// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"github.com/golang/glog"

	"github.com/Thermoquad/rclink/pkg/transport"
)

// Tap wraps a transport channel and records every byte read from or written
// to it
type Tap struct {
	transport.Channel
	w *Writer
}

// NewTap records traffic on ch to w
func NewTap(ch transport.Channel, w *Writer) *Tap {
	return &Tap{Channel: ch, w: w}
}

// ReadAvailable implements transport.Channel
func (t *Tap) ReadAvailable(p []byte) int {
	n := t.Channel.ReadAvailable(p)
	if n > 0 {
		if err := t.w.Write(RX, p[:n]); err != nil {
			glog.Warningf("capture: %v", err)
		}
	}
	return n
}

// Write implements transport.Channel
func (t *Tap) Write(p []byte) (int, error) {
	n, err := t.Channel.Write(p)
	if n > 0 {
		if werr := t.w.Write(TX, p[:n]); werr != nil {
			glog.Warningf("capture: %v", werr)
		}
	}
	return n, err
}
