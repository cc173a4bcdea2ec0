// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

// ActuationSink applies decoded control state to hardware outputs
type ActuationSink interface {
	ApplyState(p StatePacket)
}

// EventHandler reacts to button events. Unknown identifiers are ignored.
type EventHandler interface {
	HandleEvent(id uint8)
}

// Logger records decoded packets. Logging is best effort and must not block.
type Logger interface {
	Record(p Packet)
}

// Dispatcher routes decoded packets to their collaborators. Any field may be
// nil.
type Dispatcher struct {
	Actuation ActuationSink
	Events    EventHandler
	Logger    Logger
}

// HandlePacket implements Handler
func (d *Dispatcher) HandlePacket(p Packet) {
	switch pkt := p.(type) {
	case StatePacket:
		if d.Actuation != nil {
			d.Actuation.ApplyState(pkt)
		}
	case EventPacket:
		if d.Events != nil {
			d.Events.HandleEvent(pkt.ID)
		}
	}
	if d.Logger != nil {
		d.Logger.Record(p)
	}
}
