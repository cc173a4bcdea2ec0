// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"io"
	"time"

	"github.com/Thermoquad/rclink/pkg/rclink"
)

// ReplayFunc receives each packet recovered from a capture along with the
// direction it travelled and the time it was recorded
type ReplayFunc func(dir Direction, at time.Time, p rclink.Packet)

// Replay decodes the recorded traffic of the selected directions. Each
// direction gets its own decoder recognizing kinds, so interleaved RX and TX
// chunks do not corrupt each other. It returns the decoder counters per
// direction.
func Replay(r *Reader, dirs []Direction, kinds []rclink.Kind, fn ReplayFunc) (map[Direction]rclink.DecoderStats, error) {
	decoders := make(map[Direction]*rclink.Decoder, len(dirs))
	for _, d := range dirs {
		decoders[d] = rclink.NewDecoder(
			rclink.WithCapacity(rclink.MonitorBufferCapacity),
			rclink.WithKinds(kinds...),
		)
	}

	started := r.Header().Started
	var err error
	for {
		var rec Record
		rec, err = r.Next()
		if err != nil {
			break
		}
		dec, ok := decoders[rec.Direction]
		if !ok {
			continue
		}
		at := started.Add(time.Duration(rec.Millis) * time.Millisecond)
		dec.Feed(rec.Data, rclink.HandlerFunc(func(p rclink.Packet) {
			fn(rec.Direction, at, p)
		}))
	}

	stats := make(map[Direction]rclink.DecoderStats, len(decoders))
	for d, dec := range decoders {
		stats[d] = dec.Stats()
	}
	if errors.Is(err, io.EOF) {
		return stats, nil
	}
	return stats, err
}
