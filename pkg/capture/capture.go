// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw link traffic to a file and reads it back.
//
// A capture is a stream of CBOR items: one Header followed by any number of
// Records. Each record holds the bytes seen in one read or write together
// with its direction and the milliseconds since the capture started.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Magic identifies capture files
const Magic = "rclink-capture"

// Version is the capture format version written by this package
const Version = 1

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("not an rclink capture")

// Direction tells whether recorded bytes were received or sent
type Direction uint8

const (
	RX Direction = iota
	TX
)

// String implements fmt.Stringer
func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// Header opens every capture
type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version int       `cbor:"2,keyasint"`
	Session string    `cbor:"3,keyasint"`
	Started time.Time `cbor:"4,keyasint"`
	Source  string    `cbor:"5,keyasint,omitempty"`
}

// Record is one chunk of traffic
type Record struct {
	Millis    uint32    `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Data      []byte    `cbor:"3,keyasint"`
}

// Writer appends records to a capture stream. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	started time.Time
	header  Header
	now     func() time.Time
}

// NewWriter writes a header with a fresh session id and returns a writer
func NewWriter(w io.Writer, source string) (*Writer, error) {
	now := time.Now()
	h := Header{
		Magic:   Magic,
		Version: Version,
		Session: uuid.NewString(),
		Started: now,
		Source:  source,
	}

	enc := cbor.NewEncoder(w)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc, started: now, header: h, now: time.Now}, nil
}

// Header returns the header written at the start of the capture
func (w *Writer) Header() Header {
	return w.header
}

// Write records data seen in direction dir now
func (w *Writer) Write(dir Direction, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	ms := uint32(w.now().Sub(w.started).Milliseconds())
	return w.WriteRecord(Record{Millis: ms, Direction: dir, Data: append([]byte(nil), data...)})
}

// WriteRecord appends a record as is
func (w *Writer) WriteRecord(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// Reader reads a capture stream
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)

	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotCapture, h.Magic)
	}
	if h.Version > Version {
		return nil, fmt.Errorf("unsupported capture version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}
