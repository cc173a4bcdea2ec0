// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport carries raw link bytes between the device runtime and
// the application.
//
// Every Channel owns a background reader that fills an in-memory inbox, so
// ReadAvailable never blocks and the control loop can poll it every tick.
// Network channels also queue outgoing frames for a background writer, so
// a peer that stops reading cannot stall Write.
package transport

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed channel
	ErrClosed = errors.New("transport closed")
	// ErrNotConnected is returned when writing with no peer attached
	ErrNotConnected = errors.New("no peer connected")
)

// Channel is a byte link to a single peer
type Channel interface {
	// Connected reports whether a peer is attached
	Connected() bool
	// ReadAvailable copies buffered bytes into p without blocking
	ReadAvailable(p []byte) int
	// Write sends p to the peer
	Write(p []byte) (int, error)
	Close() error
}

// DefaultInboxSize bounds the bytes buffered between reads
const DefaultInboxSize = 4096

// inbox is a bounded byte queue filled by a reader goroutine. When full the
// oldest bytes are dropped.
type inbox struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	dropped uint64
}

func newInbox(max int) *inbox {
	if max <= 0 {
		max = DefaultInboxSize
	}
	return &inbox{max: max}
}

func (b *inbox) push(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.dropped += uint64(over)
	}
}

func (b *inbox) drain(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(p, b.buf)
	b.buf = append(b.buf[:0], b.buf[n:]...)
	return n
}

func (b *inbox) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
}

// Dropped returns the bytes discarded because the inbox was full
func (b *inbox) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Outgoing frame limits for network channels
const (
	// DefaultOutboxFrames bounds the frames queued for the writer
	DefaultOutboxFrames = 256
	// DefaultWriteTimeout bounds a single frame write to the peer. A peer
	// that cannot take a frame within it is dropped.
	DefaultWriteTimeout = 250 * time.Millisecond
)

// outbox is a bounded frame queue drained by a writer goroutine. When full
// the oldest frames are dropped.
type outbox struct {
	mu      sync.Mutex
	frames  [][]byte
	max     int
	dropped uint64
	ready   chan struct{}
}

func newOutbox(max int) *outbox {
	if max <= 0 {
		max = DefaultOutboxFrames
	}
	return &outbox{max: max, ready: make(chan struct{}, 1)}
}

// push queues a copy of p and wakes the writer
func (o *outbox) push(p []byte) {
	o.mu.Lock()
	o.frames = append(o.frames, append([]byte(nil), p...))
	if over := len(o.frames) - o.max; over > 0 {
		o.frames = append(o.frames[:0], o.frames[over:]...)
		o.dropped += uint64(over)
	}
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// take removes and returns every queued frame
func (o *outbox) take() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames := o.frames
	o.frames = nil
	return frames
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = nil
}

// droppedFrames returns the frames discarded because the queue was full
func (o *outbox) droppedFrames() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
