// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "sync/atomic"

type pipeLink struct {
	up     atomic.Bool
	closed atomic.Bool
}

// PipeEnd is one side of an in-memory link
type PipeEnd struct {
	*inbox
	peer *PipeEnd
	link *pipeLink
}

// NewPipe creates a connected pair of in-memory channels. Bytes written to
// one end become readable on the other.
func NewPipe() (*PipeEnd, *PipeEnd) {
	link := &pipeLink{}
	link.up.Store(true)
	a := &PipeEnd{inbox: newInbox(0), link: link}
	b := &PipeEnd{inbox: newInbox(0), link: link}
	a.peer, b.peer = b, a
	return a, b
}

// SetConnected simulates the peer attaching or leaving
func (p *PipeEnd) SetConnected(up bool) {
	p.link.up.Store(up)
}

// Connected implements Channel
func (p *PipeEnd) Connected() bool {
	return p.link.up.Load() && !p.link.closed.Load()
}

// ReadAvailable implements Channel
func (p *PipeEnd) ReadAvailable(b []byte) int {
	return p.drain(b)
}

// Write implements Channel
func (p *PipeEnd) Write(b []byte) (int, error) {
	if p.link.closed.Load() {
		return 0, ErrClosed
	}
	if !p.link.up.Load() {
		return 0, ErrNotConnected
	}
	p.peer.push(b)
	return len(b), nil
}

// Close implements Channel. Closing either end closes the link.
func (p *PipeEnd) Close() error {
	p.link.closed.Store(true)
	return nil
}
