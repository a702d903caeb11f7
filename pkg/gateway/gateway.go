// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway wires the codec, FSM, queue, store, and entity graph
// packages into the single event-loop owner described in §5: one goroutine
// reads byte-lines from the transport and feeds pkg/ramses -> pkg/protocol ->
// pkg/store/pkg/schema in strict order, while send_cmd callers interact with
// that loop only through the bounded queue and a per-command result channel.
// Grounded on the single-reader-goroutine-plus-channel pattern in
// cmd/control.go.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ctr/ramses-rf/pkg/gatewayconfig"
	"github.com/ctr/ramses-rf/pkg/protocol"
	"github.com/ctr/ramses-rf/pkg/ramses"
	"github.com/ctr/ramses-rf/pkg/schema"
)

// pollInterval is the FSM timeout poll cadence of §5 ("polled at 0.5 ms").
const pollInterval = 500 * time.Microsecond

// ErrTransportClosed is returned by Run when the byte-line source reaches
// end of stream.
var ErrTransportClosed = errors.New("gateway: transport closed")

type lineResult struct {
	dtm  time.Time
	line string
	err  error
}

type sendRequest struct {
	cmd          *ramses.Command
	priority     int
	maxRetries   int
	resultCh     chan protocol.Result
	waitForReply *bool
}

// Gateway is the orchestrator of C1-C9: it owns the Send/Echo/Reply FSM, the
// priority send queue, and the entity graph (which in turn owns the
// per-entity message stores), and drives them all from a single goroutine.
type Gateway struct {
	cfg    *gatewayconfig.Config
	source ByteLineSource
	sink   ByteLineSink

	fsm   *protocol.Context
	queue *protocol.Queue
	graph *schema.Graph
	stats *Statistics

	sendCh chan sendRequest
}

// New builds a Gateway from a loaded configuration and a wired transport.
func New(cfg *gatewayconfig.Config, source ByteLineSource, sink ByteLineSink) (*Gateway, error) {
	outer, echo, reply, err := cfg.ParseTimeouts()
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:    cfg,
		source: source,
		sink:   sink,
		fsm:    protocol.NewContext(protocol.Timeouts{Outer: outer, Echo: echo, Reply: reply}),
		queue:  protocol.NewQueue(),
		graph:  schema.NewGraph(cfg.Eavesdrop),
		stats:  NewStatistics(),
		sendCh: make(chan sendRequest, protocol.QueueCapacity),
	}, nil
}

// Graph exposes the entity graph built up by Run, for read-only inspection
// by cmd/ reporting commands.
func (g *Gateway) Graph() *schema.Graph { return g.graph }

// Stats exposes the running frame/command counters.
func (g *Gateway) Stats() *Statistics { return g.stats }

// SendCmd submits a command to the bounded priority queue (§4.6) and returns
// a channel that receives exactly one Result once the command completes,
// fails, or is dropped for backpressure. It never blocks: a full submit
// channel is reported as an immediate ErrQueueFull, and a full priority queue
// is reported as an ErrQueueFull Result on the returned channel, per §4.6/§5
// ("Backpressure").
//
// The default wait_for_reply policy applies (§4.5): the caller blocks for
// the flipped-verb reply only when cmd.Verb is RQ, and gets the adapter's
// own loopback echo back otherwise. Use SendCmdWait to override this.
func (g *Gateway) SendCmd(cmd *ramses.Command, priority int) (<-chan protocol.Result, error) {
	return g.SendCmdWait(cmd, priority, nil)
}

// SendCmdWait is SendCmd with an explicit override of send_cmd's
// wait_for_reply policy (§4.5): true always waits for the flipped-verb
// reply even for a non-RQ verb, false always completes on the echo even for
// an RQ, and nil defers to the verb-derived default.
func (g *Gateway) SendCmdWait(cmd *ramses.Command, priority int, waitForReply *bool) (<-chan protocol.Result, error) {
	maxRetries := g.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = protocol.DefaultMaxRetries
	}
	resultCh := make(chan protocol.Result, 1)
	select {
	case g.sendCh <- sendRequest{cmd: cmd, priority: priority, maxRetries: maxRetries, resultCh: resultCh, waitForReply: waitForReply}:
		return resultCh, nil
	default:
		return nil, protocol.ErrQueueFull
	}
}

// Run drives the event loop until ctx is cancelled or the transport closes.
// It is the only method that may block for an extended period; every other
// method on Gateway is safe to call from other goroutines because it only
// ever touches the unbuffered/buffered channels, never the FSM/queue/graph
// state directly.
func (g *Gateway) Run(ctx context.Context) error {
	lines := make(chan lineResult, 16)
	go g.readLoop(ctx, lines)

	g.fsm.MadeConnection(false)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.fsm.LostConnection()
			return ctx.Err()

		case lr, ok := <-lines:
			if !ok {
				g.fsm.LostConnection()
				return ErrTransportClosed
			}
			g.handleLine(lr)
			g.pump(lr.dtm)

		case req := <-g.sendCh:
			g.enqueue(req)
			g.pump(time.Now())

		case now := <-ticker.C:
			g.fsm.PollTimeouts(now)
			g.pump(now)
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, out chan<- lineResult) {
	defer close(out)
	for {
		line, dtm, err := g.source.NextLine()
		select {
		case out <- lineResult{dtm: dtm, line: line, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// handleLine decodes one wire line and feeds it through the frame error
// taxonomy, the FSM, and the entity graph, in that order (§5's strict
// ordering: codec before FSM before store/graph; codec rejects short-circuit
// first so a malformed frame never reaches the FSM or the graph).
func (g *Gateway) handleLine(lr lineResult) {
	if lr.err != nil {
		g.stats.ObserveRejection(lr.err)
		return
	}

	f, err := ramses.ParseFrame(lr.dtm, lr.line)
	if err != nil {
		g.stats.ObserveRejection(err)
		return
	}
	g.stats.ObserveFrame(f)

	if err := g.fsm.RcvdPkt(lr.dtm, f); err != nil {
		g.stats.ObserveSendFailure(err)
	}

	if !f.IsEcho() {
		g.graph.Observe(f)
		g.route(f)
	}
}

// route writes an observed frame into every entity store it is relevant to:
// always the producing device's own store, and additionally a zone or DHW
// store when the frame carries a zone-idx context and its system is already
// known (§4.7's "one Store instance exists per entity").
func (g *Gateway) route(f *ramses.Frame) {
	if dev, ok := g.graph.DeviceFor(f.Src()); ok {
		dev.Store.Put(f, nil)
	}

	sys, ok := g.resolveSystem(f)
	if !ok {
		return
	}

	ctx := f.Ctx()
	if !ctx.IsString {
		return
	}
	if ctx.Str == schema.DhwIdx {
		if dhw, err := sys.GetOrCreateDhw(); err == nil {
			dhw.Store.Put(f, nil)
		}
		return
	}
	if zone, err := sys.GetOrCreateZone(ctx.Str); err == nil {
		zone.Store.Put(f, nil)
	}
}

func (g *Gateway) resolveSystem(f *ramses.Frame) (*schema.System, bool) {
	if sys, ok := g.graph.SystemFor(f.Src()); ok {
		return sys, true
	}
	if f.HasDst() {
		if sys, ok := g.graph.SystemFor(f.Dst()); ok {
			return sys, true
		}
	}
	return nil, false
}

func (g *Gateway) enqueue(req sendRequest) {
	entry := &protocol.Entry{
		Priority:     req.priority,
		Submitted:    time.Now(),
		Cmd:          req.cmd,
		MaxRetries:   req.maxRetries,
		ResultCh:     req.resultCh,
		WaitForReply: req.waitForReply,
	}
	if err := g.queue.Submit(entry); err != nil {
		req.resultCh <- protocol.Result{Err: err}
	}
}

// pump advances the FSM/queue pair whenever it is idle or failed, per §4.6
// ("Drain is called every time the FSM returns to IsInIdle or IsFailed").
func (g *Gateway) pump(now time.Time) {
	for {
		switch g.fsm.State() {
		case protocol.IsFailed:
			// Drain prunes cancelled/expired entries as a side effect even
			// though we don't dispatch here; recovery waits for the queue to
			// hold nothing live, per §4.6.
			if head := g.queue.Drain(now); head == nil {
				g.fsm.Recover()
				continue
			}
			return
		case protocol.IsInIdle:
			entry := g.queue.Drain(now)
			if entry == nil {
				return
			}
			g.dispatch(now, entry)
			return
		default:
			return
		}
	}
}

func (g *Gateway) dispatch(now time.Time, e *protocol.Entry) {
	g.queue.Pop()
	if err := g.fsm.SentCmd(now, e.Cmd, e.MaxRetries, e.ResultCh, e.WaitForReply); err != nil {
		if e.ResultCh != nil {
			e.ResultCh <- protocol.Result{Err: err}
		}
		return
	}
	g.stats.ObserveSend(false)
	if err := g.sink.WriteLine(e.Cmd.ToWireBytes()); err != nil {
		g.stats.ObserveSendFailure(err)
	}
}
