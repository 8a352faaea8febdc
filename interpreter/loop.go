package interpreter

import (
	"context"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/link"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/port"
	"github.com/wickrt/wick/transaction"
)

// loop is the single consumer of rt.events (spec §4.7: "one goroutine
// drains the dispatch channel and is the only writer of transaction
// state"). Every handler below touches only the transaction named in the
// event it was handed.
func (rt *Runtime) loop() {
	for ev := range rt.events {
		rt.mu.Lock()
		tx := rt.txs[ev.TxID]
		rt.mu.Unlock()
		if tx == nil {
			continue // event for a transaction already torn down
		}

		switch ev.Kind {
		case EvData:
			rt.handleData(tx, ev)
		case EvCallReady:
			rt.handleCallReady(tx, ev)
		case EvCallComplete:
			rt.handleCallComplete(tx, ev)
		case EvOpErr:
			rt.handleOpErr(tx, ev)
		case EvTxDone:
			rt.handleTxDone(tx, ev)
		case EvPing:
			// reserved wake-up; nothing to do without a registered timer.
		}
	}
}

// handleData drains every packet newly sitting on (ev.Node, ev.Port) and
// fans each one out to every wired downstream connection, renaming it to
// the destination port as it crosses the wire (spec §4.7/§4.3).
func (rt *Runtime) handleData(tx *transaction.Transaction, ev Event) {
	sch := tx.Schematic

	var nodeIdx int
	var source *port.Handler
	if ev.Node == graph.InputNode {
		nodeIdx = sch.InputNodeIndex()
		source = tx.InputPort(ev.Port)
	} else {
		idx, ok := sch.NodeByID(ev.Node)
		if !ok {
			return
		}
		nodeIdx = idx
		h, ok := tx.Handler(idx)
		if !ok {
			return
		}
		source = h.OutputPort(ev.Port)
	}
	if source == nil {
		return
	}

	for {
		p, ok := source.Take()
		if !ok {
			break
		}
		for _, c := range sch.OutgoingOnPort(nodeIdx, ev.Port) {
			routed := p.WithPort(c.ToPort)
			rt.route(tx, c.ToNode, routed)
		}
	}
}

// route delivers one already-renamed packet to its destination: the
// caller-visible output boundary, or a real node's input port, firing a
// CallReady event on the port's closed→ready transition.
func (rt *Runtime) route(tx *transaction.Transaction, toNode int, p packet.Packet) {
	sch := tx.Schematic

	if toNode == sch.OutputNodeIndex() {
		if p.IsDone() && !tx.MarkUpstreamDone(toNode, p.Port()) {
			// Another connection into this fan-in port is still open;
			// swallow this producer's done signal (spec §5 fan-in).
			return
		}
		outp := tx.OutputPort(p.Port())
		if outp == nil || outp.IsClosed() {
			return
		}
		res, err := outp.Buffer(p)
		if err != nil {
			rt.abortTx(tx, err.Error())
			return
		}
		rt.flushOutput(tx, p.Port())
		if res == port.Consumed {
			// A done packet on an empty port closes it without being
			// buffered, so flushOutput never sees it; hand it over here.
			rt.mu.Lock()
			outCh := rt.outs[tx.TxID]
			rt.mu.Unlock()
			if outCh != nil {
				outCh <- p
			}
		}
		if tx.OutputsClosed() {
			rt.events <- Event{TxID: tx.TxID, Kind: EvTxDone, FinalStatus: transaction.Finished}
		}
		return
	}

	target, ok := tx.Handler(toNode)
	if !ok {
		return
	}
	if p.IsDone() && !tx.MarkUpstreamDone(toNode, p.Port()) {
		// A sibling connection into the same fan-in port hasn't finished
		// yet; this producer's done signal doesn't close the port on its
		// own (spec §5: "ports have exactly one producer per connection
		// unless the graph fans in").
		return
	}
	wasReady := target.Ready()
	if err := target.BufferIn(p.Port(), p); err != nil {
		rt.abortTx(tx, err.Error())
		return
	}
	if p.IsDone() {
		if pt := target.InputPort(p.Port()); pt != nil {
			pt.MarkUpstreamComplete()
		}
	}
	if !wasReady && target.Ready() {
		rt.events <- Event{TxID: tx.TxID, Kind: EvCallReady, Node: sch.Nodes[toNode].ID}
	}
}

// flushOutput drains a boundary output port into the caller-facing
// channel Exec is reading from.
func (rt *Runtime) flushOutput(tx *transaction.Transaction, portName string) {
	pt := tx.OutputPort(portName)
	if pt == nil {
		return
	}
	rt.mu.Lock()
	outCh := rt.outs[tx.TxID]
	rt.mu.Unlock()
	if outCh == nil {
		return
	}
	for {
		p, ok := pt.Take()
		if !ok {
			break
		}
		outCh <- p
	}
}

// handleCallReady drains a node's accumulated input and starts a fresh
// operation call over it, if the node is still ready and not already
// running a non-reentrant call (spec §4.4, §4.7). A node may receive
// several CallReady events over a transaction's life: one per
// closed→ready transition its input ports make.
func (rt *Runtime) handleCallReady(tx *transaction.Transaction, ev Event) {
	h, ok := tx.HandlerByID(ev.Node)
	if !ok || !h.Ready() {
		return
	}

	nodeIdx, ok := tx.Schematic.NodeByID(ev.Node)
	if !ok {
		return
	}
	node := tx.Schematic.Nodes[nodeIdx]

	if h.Running() && !node.Sig.Reentrant {
		// A call is already in flight; its eventual CallComplete handler
		// re-checks readiness and fires a fresh CallReady once it's free.
		// Draining now would discard input no in-flight call will read.
		return
	}

	contract, ok := rt.registry.Contract(node.Ref.Namespace, node.Ref.Operation)
	if !ok {
		rt.abortTx(tx, "no such operation: "+node.Ref.String())
		return
	}
	if err := operation.ValidateConfig(node.Sig.ConfigSchema, node.Config); err != nil {
		rt.abortTx(tx, err.Error())
		return
	}

	drained := h.DrainInputs()
	if len(drained) == 0 && len(node.Sig.Inputs) == 0 {
		// Generator bootstrap (spec §9, Open Question 2): a node with no
		// declared inputs gets a single synthetic noop packet so its
		// operation has something to read before it starts producing.
		drained = []packet.Packet{packet.NoopPacket("")}
	}

	inputCh := make(chan packet.Packet, len(drained))
	for _, p := range drained {
		inputCh <- p
	}
	close(inputCh)

	rt.mu.Lock()
	callCtx := rt.ctxs[tx.TxID]
	rt.mu.Unlock()
	if callCtx == nil {
		callCtx = context.Background()
	}

	inv := operation.Invocation{
		TxID:     tx.TxID,
		Origin:   graph.Reference{Namespace: "self", Operation: tx.Schematic.Name},
		Target:   node.Ref,
		Input:    inputCh,
		Inherent: tx.Inherent,
	}
	cb := link.NewCallback(rt, tx.TxID)

	if err := h.Start(callCtx, contract, inv, node.Config, cb); err != nil {
		rt.abortTx(tx, err.Error())
	}
}

// handleCallComplete runs the node's stream-complete bookkeeping. Output
// propagation already happened in-band: the instance's output handler
// auto-closes any still-hanging port with a synthetic done packet and
// fires Data for it before ever reporting CallComplete (spec §4.4), so
// HandleStreamComplete here only finalizes pending/port accounting for
// ports that received no traffic at all.
func (rt *Runtime) handleCallComplete(tx *transaction.Transaction, ev Event) {
	h, ok := tx.HandlerByID(ev.Node)
	if !ok {
		return
	}
	h.HandleStreamComplete()

	// Input may have accumulated while the just-finished call was in
	// flight, with no closed→ready edge to announce it (the port never
	// stopped being ready). Re-check directly so that input isn't
	// stranded behind a non-reentrant operation's busy window.
	if h.Ready() {
		rt.events <- Event{TxID: tx.TxID, Kind: EvCallReady, Node: ev.Node}
	}
}

// handleOpErr reacts to a node-attributed error. A non-fatal OpErr is
// already visible downstream as the in-band error packet the output
// handler delivered; only a fatal OpErr aborts the transaction.
func (rt *Runtime) handleOpErr(tx *transaction.Transaction, ev Event) {
	if !ev.Fatal {
		return
	}
	msg := ev.ErrPacket.Payload().Message()
	if msg == "" {
		msg = "operation " + ev.Node + " failed fatally"
	}
	rt.abortTx(tx, msg)
}

// abortTx delivers a fatal error packet to every boundary output port
// still open, then terminates the transaction (spec §4.6: "a fatal error
// on any node aborts the whole transaction").
func (rt *Runtime) abortTx(tx *transaction.Transaction, reason string) {
	for _, name := range tx.OutputPortNames() {
		outp := tx.OutputPort(name)
		if outp == nil || outp.IsClosed() {
			continue
		}
		_, _ = outp.Buffer(packet.ErrPacket(name, reason))
		rt.flushOutput(tx, name)
	}
	rt.events <- Event{TxID: tx.TxID, Kind: EvTxDone, FinalStatus: transaction.Aborted}
}

// handleTxDone finalizes a transaction exactly once: subsequent TxDone
// events for an already-terminal transaction (e.g. a fatal error racing
// the natural outputs-closed path) are ignored.
func (rt *Runtime) handleTxDone(tx *transaction.Transaction, ev Event) {
	if tx.Status() == transaction.Finished || tx.Status() == transaction.Aborted {
		return
	}
	if ev.FinalStatus == transaction.Finished {
		tx.Finish()
	} else {
		tx.Abort("transaction aborted")
	}

	rt.mu.Lock()
	outCh := rt.outs[tx.TxID]
	doneCh := rt.dones[tx.TxID]
	cancel := rt.cancel[tx.TxID]
	rt.mu.Unlock()

	for _, h := range tx.Handlers() {
		h.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	if outCh != nil {
		close(outCh)
	}
	if doneCh != nil {
		close(doneCh)
	}
}
