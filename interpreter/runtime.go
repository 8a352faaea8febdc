// Package interpreter implements the event loop of spec §4.7 — "the
// heart" of the runtime: a single dispatch channel serializing every
// mutation of every transaction's port and instance state, fed by node
// output handlers and boundary input, and drained by one consumer
// goroutine.
package interpreter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/link"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/registry"
	"github.com/wickrt/wick/transaction"
	"github.com/wickrt/wick/werrors"
	"github.com/wickrt/wick/wicklog"
)

// DispatchBuffer sizes the event channel; the loop is the sole consumer,
// so a generous buffer keeps output-handler goroutines from blocking on a
// slow tick (spec §9: "a bounded channel, not an unbounded queue").
const DispatchBuffer = 1024

// Runtime owns the component registry, the compiled graph, and one event
// loop shared by every transaction the process admits (spec §4.7, §5).
type Runtime struct {
	graph    *graph.Graph
	registry *registry.Registry
	log      wicklog.Logger

	events chan Event

	mu     sync.Mutex
	txs    map[string]*transaction.Transaction
	outs   map[string]chan packet.Packet
	dones  map[string]chan struct{}
	ctxs   map[string]context.Context
	cancel map[string]context.CancelFunc

	// outputTimeout, when non-zero, overrides instance.DefaultOutputTimeout
	// for every node of every transaction this Runtime admits.
	outputTimeout time.Duration
}

// WithOutputTimeout overrides the per-packet output timeout every node
// handler uses (spec §4.4/§5's configurable execution timeout). Zero
// leaves instance.DefaultOutputTimeout in effect.
func (rt *Runtime) WithOutputTimeout(d time.Duration) *Runtime {
	rt.outputTimeout = d
	return rt
}

// New builds a Runtime over a validated graph and populated registry, and
// starts its event loop goroutine.
func New(g *graph.Graph, reg *registry.Registry, log wicklog.Logger) *Runtime {
	if log == nil {
		log = wicklog.NoOp{}
	}
	rt := &Runtime{
		graph:    g,
		registry: reg,
		log:      log,
		events:   make(chan Event, DispatchBuffer),
		txs:      make(map[string]*transaction.Transaction),
		outs:     make(map[string]chan packet.Packet),
		dones:    make(map[string]chan struct{}),
		ctxs:     make(map[string]context.Context),
		cancel:   make(map[string]context.CancelFunc),
	}
	go rt.loop()
	return rt
}

// txSink adapts one transaction's instance.EventSink calls into the
// runtime's shared dispatch channel, tagging every event with its owning
// tx_id (spec §4.4/§4.7).
type txSink struct {
	txID   string
	events chan<- Event
}

func (s txSink) Data(node, port string) {
	s.events <- Event{TxID: s.txID, Kind: EvData, Node: node, Port: port}
}

func (s txSink) CallComplete(node string) {
	s.events <- Event{TxID: s.txID, Kind: EvCallComplete, Node: node}
}

func (s txSink) OpErr(node string, p packet.Packet, fatal bool) {
	s.events <- Event{TxID: s.txID, Kind: EvOpErr, Node: node, ErrPacket: p, Fatal: fatal}
}

// Exec runs one schematic invocation to completion and returns the
// packets it wrote to its boundary output ports, in arrival order
// (spec §4.6's "a single invocation of a schematic, start to finish").
// Exec blocks until the transaction reaches Finished or Aborted, or ctx is
// canceled.
func (rt *Runtime) Exec(ctx context.Context, schematicName string, input []packet.Packet, inherent operation.Inherent) ([]packet.Packet, transaction.Status, error) {
	sch, ok := rt.graph.Schematic(schematicName)
	if !ok {
		return nil, transaction.Aborted, werrors.NewExecutionError(werrors.MissingComponent, "", "", "schematic not found: "+schematicName)
	}

	txID := uuid.NewString()
	sink := txSink{txID: txID, events: rt.events}
	tx := transaction.New(sch, txID, inherent, sink)

	outCh := make(chan packet.Packet, 256)
	doneCh := make(chan struct{})
	txCtx, cancel := context.WithCancel(ctx)

	rt.mu.Lock()
	rt.txs[txID] = tx
	rt.outs[txID] = outCh
	rt.dones[txID] = doneCh
	rt.ctxs[txID] = txCtx
	rt.cancel[txID] = cancel
	rt.mu.Unlock()

	var collected []packet.Packet
	drained := make(chan struct{})
	go func() {
		for p := range outCh {
			collected = append(collected, p)
		}
		close(drained)
	}()

	if rt.outputTimeout > 0 {
		for _, h := range tx.Handlers() {
			h.WithOutputTimeout(rt.outputTimeout)
		}
	}

	tx.Start()
	rt.log.Debug("tx %s started for schematic %s", txID, schematicName)

	// Generators (no declared inputs) are ready once, at transaction
	// start (spec §4.7).
	for _, n := range sch.Nodes {
		if n.Index == sch.InputNodeIndex() || n.Index == sch.OutputNodeIndex() {
			continue
		}
		if len(n.Sig.Inputs) == 0 {
			rt.events <- Event{TxID: txID, Kind: EvCallReady, Node: n.ID}
		}
	}

	for _, p := range input {
		pt := tx.InputPort(p.Port())
		if pt == nil {
			continue
		}
		if _, err := pt.Buffer(p); err != nil {
			rt.events <- Event{TxID: txID, Kind: EvOpErr, Fatal: true, ErrPacket: packet.FatalErr(p.Port(), err.Error())}
			break
		}
		rt.events <- Event{TxID: txID, Kind: EvData, Node: graph.InputNode, Port: p.Port()}
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		rt.events <- Event{TxID: txID, Kind: EvTxDone, FinalStatus: transaction.Aborted}
		<-doneCh
	}
	<-drained

	rt.mu.Lock()
	delete(rt.txs, txID)
	delete(rt.outs, txID)
	delete(rt.dones, txID)
	delete(rt.ctxs, txID)
	delete(rt.cancel, txID)
	rt.mu.Unlock()

	status := tx.Status()
	if status == transaction.Aborted {
		return collected, status, fmt.Errorf("transaction %s aborted: %s", txID, tx.AbortReason())
	}
	return collected, status, nil
}

// Invoke implements link.Runtime: it looks up target's operation contract
// and calls it directly with a fresh sub-transaction id (parentTxID + "/" +
// a uuid) for tracing (spec §4.10), passing through the calling operation's
// input and returning the contract's own output channel. The call does not
// go through the dispatch channel or the event loop.
func (rt *Runtime) Invoke(ctx context.Context, target graph.Reference, opName string, input <-chan packet.Packet, inherent operation.Inherent, config map[string]any, parentTxID string) (<-chan packet.Packet, error) {
	contract, ok := rt.registry.Contract(target.Namespace, opName)
	if !ok {
		return nil, werrors.NewExecutionError(werrors.MissingComponent, parentTxID, "", "no such operation: "+target.Namespace+"::"+opName)
	}

	subTxID := parentTxID + "/" + uuid.NewString()
	inv := operation.Invocation{
		TxID:     subTxID,
		Origin:   target,
		Target:   target,
		Input:    input,
		Inherent: inherent,
	}
	cb := link.NewCallback(rt, subTxID)
	return contract.Handle(ctx, inv, config, cb)
}

var _ link.Runtime = (*Runtime)(nil)
