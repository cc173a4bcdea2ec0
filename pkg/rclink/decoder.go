// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

// Handler receives packets recovered by a Decoder
type Handler interface {
	HandlePacket(p Packet)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(p Packet)

// HandlePacket implements Handler
func (f HandlerFunc) HandlePacket(p Packet) { f(p) }

// DecoderStats counts decoder activity since creation or the last Reset
type DecoderStats struct {
	Ingested       uint64 // bytes passed to Ingest
	Evicted        uint64 // bytes dropped because the buffer was full
	Dispatched     uint64 // packets handed to a Handler
	ChecksumErrors uint64 // candidates rejected on checksum
	Flushed        uint64 // bytes discarded by Expire
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithCapacity sets the buffer capacity in bytes
func WithCapacity(n int) DecoderOption {
	return func(d *Decoder) {
		if n >= HeaderSize {
			d.buf = make([]byte, n)
		}
	}
}

// WithKinds sets the packet kinds the decoder recognizes. Headers of other
// kinds are treated as noise.
func WithKinds(kinds ...Kind) DecoderOption {
	return func(d *Decoder) {
		d.kinds = append([]Kind(nil), kinds...)
	}
}

// WithStaleTimeout enables Expire. Buffered bytes that produce no packet for
// longer than ms milliseconds are flushed. Zero disables the timeout.
func WithStaleTimeout(ms uint32) DecoderOption {
	return func(d *Decoder) {
		d.staleTimeout = ms
	}
}

// WithRejectHook registers a function called for every rejected candidate
func WithRejectHook(fn func(err error)) DecoderOption {
	return func(d *Decoder) {
		d.onReject = fn
	}
}

// WithLegacyFrames reads input and sensor telemetry in the sizes written by
// the original firmware (LegacyInputPacketSize, LegacySensorPacketSize)
func WithLegacyFrames() DecoderOption {
	return func(d *Decoder) {
		d.legacy = true
	}
}

// Decoder recovers packets from an unframed byte stream.
//
// Bytes are appended to a fixed capacity buffer. When the buffer is full the
// oldest bytes are evicted first. Drain scans the buffer from the start for the
// first recognized header whose complete frame is buffered. A frame with a
// valid checksum is dispatched and everything up to its end is discarded. A
// frame with a bad checksum is dropped along with its first header byte so the
// next scan resumes one byte later. Scanning restarts from the beginning after
// every extraction.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf    []byte
	n      int
	kinds  []Kind
	legacy bool

	staleTimeout uint32
	heldSince    uint32
	holding      bool
	progress     bool

	onReject func(err error)
	stats    DecoderStats
}

// NewDecoder creates a decoder for inbound packets with the default capacity
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		buf:   make([]byte, DefaultBufferCapacity),
		kinds: append([]Kind(nil), InboundKinds...),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewMonitorDecoder creates a decoder for the telemetry sent by the device
func NewMonitorDecoder(opts ...DecoderOption) *Decoder {
	base := []DecoderOption{WithCapacity(MonitorBufferCapacity), WithKinds(OutboundKinds...)}
	return NewDecoder(append(base, opts...)...)
}

// Capacity returns the buffer capacity in bytes
func (d *Decoder) Capacity() int {
	return len(d.buf)
}

// Buffered returns the number of bytes waiting in the buffer
func (d *Decoder) Buffered() int {
	return d.n
}

// Bytes returns a copy of the buffered bytes
func (d *Decoder) Bytes() []byte {
	return append([]byte(nil), d.buf[:d.n]...)
}

// Stats returns a snapshot of the decoder counters
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Reset discards buffered bytes and counters
func (d *Decoder) Reset() {
	d.n = 0
	d.holding = false
	d.progress = false
	d.stats = DecoderStats{}
}

// Ingest appends bytes to the buffer and returns how many buffered bytes were
// evicted to make room.
func (d *Decoder) Ingest(p []byte) int {
	d.stats.Ingested += uint64(len(p))
	capacity := len(d.buf)

	evicted := 0
	if len(p) >= capacity {
		evicted = d.n + len(p) - capacity
		copy(d.buf, p[len(p)-capacity:])
		d.n = capacity
	} else {
		if over := d.n + len(p) - capacity; over > 0 {
			d.discard(over)
			evicted = over
		}
		copy(d.buf[d.n:], p)
		d.n += len(p)
	}

	d.stats.Evicted += uint64(evicted)
	return evicted
}

// Drain extracts and dispatches every complete packet in the buffer. It
// returns the number of packets dispatched. h may be nil.
func (d *Decoder) Drain(h Handler) int {
	dispatched := 0
	for {
		p, ok := d.next()
		if !ok {
			return dispatched
		}
		if p == nil {
			continue
		}
		dispatched++
		d.stats.Dispatched++
		d.progress = true
		if h != nil {
			h.HandlePacket(p)
		}
	}
}

// Feed ingests p and drains the buffer
func (d *Decoder) Feed(p []byte, h Handler) int {
	d.Ingest(p)
	return d.Drain(h)
}

// Expire flushes the buffer when it has held bytes without producing a packet
// for longer than the stale timeout. It reports whether a flush happened. now
// is a wrapping millisecond counter.
func (d *Decoder) Expire(now uint32) bool {
	if d.staleTimeout == 0 {
		return false
	}
	if d.n == 0 {
		d.holding = false
		return false
	}
	if !d.holding || d.progress {
		d.holding = true
		d.progress = false
		d.heldSince = now
		return false
	}
	if now-d.heldSince <= d.staleTimeout {
		return false
	}
	d.stats.Flushed += uint64(d.n)
	d.n = 0
	d.holding = false
	return true
}

// next performs one scan. ok is false when no complete candidate exists. A
// nil packet with ok set means a candidate was rejected and the scan should
// run again.
func (d *Decoder) next() (Packet, bool) {
	for i := 0; i+HeaderSize <= d.n; i++ {
		k, found := d.accepts(d.buf[i], d.buf[i+1])
		if !found {
			continue
		}
		size, known := d.frameSize(k, d.buf[i:d.n])
		if !known || i+size > d.n {
			continue
		}

		frame := make([]byte, size)
		copy(frame, d.buf[i:i+size])

		p, err := d.decode(k, frame)
		if err != nil {
			d.stats.ChecksumErrors++
			d.discard(i + 1)
			if d.onReject != nil {
				d.onReject(err)
			}
			return nil, true
		}
		d.discard(i + size)
		return p, true
	}
	return nil, false
}

func (d *Decoder) frameSize(k Kind, buf []byte) (int, bool) {
	if d.legacy {
		switch k {
		case KindInput:
			return LegacyInputPacketSize, true
		case KindSensor:
			return LegacySensorPacketSize, true
		}
	}
	return FrameSize(k, buf)
}

func (d *Decoder) decode(k Kind, frame []byte) (Packet, error) {
	if d.legacy {
		switch k {
		case KindInput:
			return DecodeLegacyInput(frame)
		case KindSensor:
			return DecodeLegacySensor(frame)
		}
	}
	return DecodeKind(k, frame)
}

func (d *Decoder) accepts(h1, h2 byte) (Kind, bool) {
	k, ok := Lookup(h1, h2)
	if !ok {
		return KindUnknown, false
	}
	for _, want := range d.kinds {
		if want == k {
			return k, true
		}
	}
	return KindUnknown, false
}

// discard drops the first count buffered bytes
func (d *Decoder) discard(count int) {
	if count >= d.n {
		d.n = 0
		return
	}
	copy(d.buf, d.buf[count:d.n])
	d.n -= count
}
