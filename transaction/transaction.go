// Package transaction implements the per-invocation state machine of spec
// §4.6: one Transaction owns a schematic's instance handlers, the two
// boundary port sets, and a unique tx_id for the lifetime of a single
// schematic invocation.
package transaction

import (
	"strconv"
	"sync"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/instance"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/port"
)

// Status is the transaction lifecycle of spec §3/§4.6:
// Pending → Running → {Finished, Aborted}.
type Status uint8

const (
	Pending Status = iota
	Running
	Finished
	Aborted
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Transaction is one invocation of a schematic end-to-end (spec §4.6).
type Transaction struct {
	mu sync.Mutex

	TxID      string
	Schematic *graph.Schematic
	Inherent  operation.Inherent

	status Status

	// inputPorts/outputPorts are the <input>/<output> sentinel's ports,
	// derived from the connections touching the schematic's boundary
	// nodes. The caller pushes packets directly into inputPorts and drains
	// results from outputPorts; neither sentinel runs an operation task.
	inputPorts  map[string]*port.Handler
	outputPorts map[string]*port.Handler

	// handlers maps a real (non-boundary) node's arena index to its
	// instance.Handler.
	handlers map[int]*instance.Handler

	// pendingUpstreams counts, per (node index, port name), how many
	// incoming connections have yet to deliver their done packet. A port
	// fed by a single producer starts at 1 and behaves exactly as before;
	// a fan-in port (spec §5 "per-port ... unless the graph fans in")
	// starts at its incoming-connection count, and only the connection
	// that brings the count to zero actually closes the port — every
	// earlier done signal on that port is swallowed by the event loop
	// (spec §8 scenario 5: arrival-order interleaving up to that point).
	pendingUpstreams map[string]int

	abortReason string
}

func upstreamKey(nodeIdx int, port string) string {
	return strconv.Itoa(nodeIdx) + "|" + port
}

// New builds a Transaction for one invocation of sch, with one
// instance.Handler per non-boundary node. sink receives every instance's
// output-handler events; the interpreter package supplies it.
func New(sch *graph.Schematic, txID string, inherent operation.Inherent, sink instance.EventSink) *Transaction {
	t := &Transaction{
		TxID:             txID,
		Schematic:        sch,
		Inherent:         inherent,
		status:           Pending,
		inputPorts:       make(map[string]*port.Handler),
		outputPorts:      make(map[string]*port.Handler),
		handlers:         make(map[int]*instance.Handler),
		pendingUpstreams: make(map[string]int),
	}

	inIdx := sch.InputNodeIndex()
	outIdx := sch.OutputNodeIndex()

	for _, c := range sch.Outgoing(inIdx) {
		if _, ok := t.inputPorts[c.FromPort]; !ok {
			t.inputPorts[c.FromPort] = port.New(c.FromPort, port.Out)
		}
	}
	for _, c := range sch.Incoming(outIdx) {
		if _, ok := t.outputPorts[c.ToPort]; !ok {
			t.outputPorts[c.ToPort] = port.New(c.ToPort, port.In)
			t.pendingUpstreams[upstreamKey(outIdx, c.ToPort)] = len(sch.IncomingOnPort(outIdx, c.ToPort))
		}
	}
	for _, n := range sch.Nodes {
		if n.Index == inIdx || n.Index == outIdx {
			continue
		}
		t.handlers[n.Index] = instance.New(n.ID, effectiveSignature(n), sink)
		for _, p := range effectiveSignature(n).Inputs {
			t.pendingUpstreams[upstreamKey(n.Index, p.Name)] = len(sch.IncomingOnPort(n.Index, p.Name))
		}
	}

	return t
}

// MarkUpstreamDone records that one incoming connection feeding (nodeIdx,
// port) has delivered its done packet, and reports whether this was the
// last one outstanding — the only caller-visible "the port may actually
// close now" signal for fan-in ports (spec §5). Ports with a single
// producer (the common case) report true on the first and only call.
func (t *Transaction) MarkUpstreamDone(nodeIdx int, port string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := upstreamKey(nodeIdx, port)
	n, ok := t.pendingUpstreams[key]
	if !ok || n <= 0 {
		return false
	}
	n--
	t.pendingUpstreams[key] = n
	return n == 0
}

// effectiveSignature returns the port shape an instance.Handler should be
// built with: a Dynamic operation's real per-node ports come from the
// node's own decorated Inputs/Outputs (spec §4.2's DecorateCoreNodes), not
// the component's generic, portless Signature (e.g. `merge`'s Signature
// declares Dynamic:true and no fixed ports at all).
func effectiveSignature(n graph.Node) graph.Signature {
	if !n.Sig.Dynamic {
		return n.Sig
	}
	sig := n.Sig
	sig.Inputs = n.Inputs
	sig.Outputs = n.Outputs
	return sig
}

// Status returns the transaction's current lifecycle state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start transitions Pending → Running. No-op if already past Pending.
func (t *Transaction) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == Pending {
		t.status = Running
	}
}

// Finish transitions to Finished, unless the transaction already Aborted.
func (t *Transaction) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != Aborted {
		t.status = Finished
	}
}

// Abort transitions to Aborted and records reason. Idempotent: the first
// fatal error wins.
func (t *Transaction) Abort(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == Aborted {
		return
	}
	t.status = Aborted
	t.abortReason = reason
}

// AbortReason returns the reason passed to the first Abort call, or "" if
// the transaction never aborted.
func (t *Transaction) AbortReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.abortReason
}

// InputPort returns the <input> sentinel's named output port, or nil.
func (t *Transaction) InputPort(name string) *port.Handler { return t.inputPorts[name] }

// OutputPort returns the <output> sentinel's named input port, or nil.
func (t *Transaction) OutputPort(name string) *port.Handler { return t.outputPorts[name] }

// InputPortNames returns every boundary input port name.
func (t *Transaction) InputPortNames() []string {
	names := make([]string, 0, len(t.inputPorts))
	for n := range t.inputPorts {
		names = append(names, n)
	}
	return names
}

// OutputPortNames returns every boundary output port name.
func (t *Transaction) OutputPortNames() []string {
	names := make([]string, 0, len(t.outputPorts))
	for n := range t.outputPorts {
		names = append(names, n)
	}
	return names
}

// Handler returns the instance.Handler for a real node by its arena index.
func (t *Transaction) Handler(nodeIndex int) (*instance.Handler, bool) {
	h, ok := t.handlers[nodeIndex]
	return h, ok
}

// HandlerByID returns the instance.Handler for a real node by its
// definition id.
func (t *Transaction) HandlerByID(nodeID string) (*instance.Handler, bool) {
	idx, ok := t.Schematic.NodeByID(nodeID)
	if !ok {
		return nil, false
	}
	return t.Handler(idx)
}

// OutputsClosed reports whether every boundary output port has reached
// DoneClosed — the transaction-finished condition of spec §4.6/§8.
func (t *Transaction) OutputsClosed() bool {
	for _, pt := range t.outputPorts {
		if !pt.IsClosed() {
			return false
		}
	}
	return true
}

// Handlers returns every real node's instance.Handler, for callers that
// need to iterate (cancellation, pending accounting).
func (t *Transaction) Handlers() map[int]*instance.Handler {
	return t.handlers
}
