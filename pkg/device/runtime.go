// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device runs the receiver side of the link: inbound packets drive
// the actuation outputs while the telemetry scheduler reports back to the
// peer.
package device

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/Thermoquad/rclink/pkg/actuation"
	"github.com/Thermoquad/rclink/pkg/rclink"
	"github.com/Thermoquad/rclink/pkg/telemetry"
	"github.com/Thermoquad/rclink/pkg/transport"
)

// DefaultInterval is the loop period of Run
const DefaultInterval = 5 * time.Millisecond

// Options configures a Runtime
type Options struct {
	Telemetry telemetry.Config
	Decoder   []rclink.DecoderOption

	// Logger receives every dispatched packet. Nil disables packet logging.
	Logger rclink.Logger

	// PulseWidth is the event pulse width in milliseconds. Zero keeps the
	// controller default.
	PulseWidth uint32

	// Interval is the loop period of Run. Zero selects DefaultInterval.
	Interval time.Duration
}

// Runtime owns the decoder, the dispatcher and the telemetry scheduler of one
// device and drives them from a single goroutine.
type Runtime struct {
	ch    transport.Channel
	clock telemetry.Clock

	decoder    *rclink.Decoder
	dispatcher *rclink.Dispatcher
	controller *actuation.Controller
	scheduler  *telemetry.Scheduler
	stats      *rclink.Statistics

	interval  time.Duration
	readBuf   []byte
	connected bool
	requests  chan func()
}

// New creates a runtime reading from and writing to ch. sensors feed the
// telemetry channels and outputs receive the actuation levels.
func New(ch transport.Channel, clock telemetry.Clock, sensors telemetry.SensorSource, outputs actuation.Outputs, opts Options) *Runtime {
	r := &Runtime{
		ch:       ch,
		clock:    clock,
		stats:    rclink.NewStatistics(),
		interval: opts.Interval,
		requests: make(chan func(), 16),
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}

	r.controller = actuation.NewController(outputs, clock)
	if opts.PulseWidth > 0 {
		r.controller.SetPulseWidth(opts.PulseWidth)
	}

	decoderOpts := append([]rclink.DecoderOption{
		rclink.WithRejectHook(func(err error) {
			r.stats.Update(nil, err, nil)
			glog.V(1).Infof("rejected frame: %v", err)
		}),
	}, opts.Decoder...)
	r.decoder = rclink.NewDecoder(decoderOpts...)
	// Reads never exceed what the decoder can hold at once
	r.readBuf = make([]byte, r.decoder.Capacity())

	r.dispatcher = &rclink.Dispatcher{
		Actuation: r.controller,
		Events:    r.controller,
		Logger: rclink.MultiLogger{
			rclink.LoggerFunc(r.account),
			opts.Logger,
		},
	}

	r.scheduler = telemetry.NewScheduler(opts.Telemetry, sensors, ch)
	r.scheduler.OnWriteError = func(k rclink.Kind, err error) {
		glog.V(1).Infof("telemetry %s not sent: %v", k, err)
	}
	return r
}

func (r *Runtime) account(p rclink.Packet) {
	errs := rclink.ValidatePacket(p)
	r.stats.Update(p, nil, errs)
	for _, e := range errs {
		glog.V(1).Infof("%s: %s", p.Kind(), e.Error())
	}
}

// Decoder returns the inbound decoder
func (r *Runtime) Decoder() *rclink.Decoder {
	return r.decoder
}

// Controller returns the actuation controller
func (r *Runtime) Controller() *actuation.Controller {
	return r.controller
}

// Scheduler returns the telemetry scheduler
func (r *Runtime) Scheduler() *telemetry.Scheduler {
	return r.scheduler
}

// Statistics returns the receive statistics. The value is owned by the loop
// goroutine.
func (r *Runtime) Statistics() *rclink.Statistics {
	return r.stats
}

// Post queues fn to run on the loop goroutine between iterations. It reports
// false when the queue is full. Use it to reach the decoder, scheduler or
// statistics from another goroutine.
func (r *Runtime) Post(fn func()) bool {
	select {
	case r.requests <- fn:
		return true
	default:
		return false
	}
}

// Submit queues an operator debug line for the loop
func (r *Runtime) Submit(line string) bool {
	return r.Post(func() { r.HandleLine(line) })
}

// Start aligns the scheduler timers to the current clock. Call it once before
// the first Poll when the clock does not start near zero.
func (r *Runtime) Start() {
	r.scheduler.Start(r.clock.Millis())
}

// Poll runs one iteration at now: drain received bytes through the decoder,
// end finished event pulses, then let the scheduler send whatever is due. The
// config packet goes out on every transition to connected.
func (r *Runtime) Poll(now uint32) {
	for {
		n := r.ch.ReadAvailable(r.readBuf)
		if n == 0 {
			break
		}
		if evicted := r.decoder.Ingest(r.readBuf[:n]); evicted > 0 {
			r.stats.AddEvicted(evicted)
		}
		r.decoder.Drain(r.dispatcher)
	}
	if r.decoder.Expire(now) {
		glog.V(1).Infof("flushed stale receive buffer")
	}

	r.controller.Update(now)

	connected := r.ch.Connected()
	if connected && !r.connected {
		glog.Info("peer connected")
		if err := r.scheduler.SendConfig(); err != nil {
			glog.Warningf("config not sent: %v", err)
		}
	} else if !connected && r.connected {
		glog.Info("peer disconnected")
	}
	r.connected = connected

	r.scheduler.Poll(now)
}

// HandleLine applies an operator debug line to the scheduler
func (r *Runtime) HandleLine(line string) {
	v, err := r.scheduler.HandleDebugLine(line)
	if err != nil {
		glog.Warningf("debug input %q: %v", line, err)
		return
	}
	glog.Info(v.String())
}

// Run polls every interval until ctx is done. Functions queued with Post run
// between iterations.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-r.requests:
			fn()
		case <-ticker.C:
			r.Poll(r.clock.Millis())
		}
	}
}
