// Package instance implements the per-node runtime object of spec §4.4:
// pending-call counter, input/output port sets, the operation task handle,
// and the output-handler loop that turns an operation's packet stream into
// port buffers and dispatch events.
package instance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/port"
	"github.com/wickrt/wick/werrors"
)

// DefaultOutputTimeout is the per-packet output timeout of spec §4.4/§5.
const DefaultOutputTimeout = 30 * time.Second

// EventSink receives the events an instance's output handler raises while
// draining an operation's packet stream. The interpreter package implements
// this to fold node-local events into its transaction-wide dispatch
// channel; instance itself never depends on interpreter, breaking what
// would otherwise be an import cycle (C7 depends on C4, never the reverse).
type EventSink interface {
	// Data reports that a packet was buffered on the named output port.
	Data(node, port string)
	// CallComplete reports that the node's output stream ended (normally or
	// fatally); the event loop reacts by calling HandleStreamComplete to
	// fetch the resulting PortChanges.
	CallComplete(node string)
	// OpErr reports a node-attributed error packet. fatal mirrors
	// packet.Flags.Fatal: a fatal OpErr aborts the whole transaction.
	OpErr(node string, p packet.Packet, fatal bool)
}

// PortChanges reports which output ports newly transitioned
// Open → UpstreamComplete as a result of a HandleStreamComplete call.
type PortChanges struct {
	ClosedOutputs []string
}

// Handler is the per-node runtime object of spec §4.4. A Handler is created
// once per node at transaction start; for non-reentrant operations Start
// keeps at most one call in flight at a time.
type Handler struct {
	mu sync.Mutex

	nodeID string
	sig    graph.Signature
	sink   EventSink

	inputs  map[string]*port.Handler
	outputs map[string]*port.Handler

	outputTimeout time.Duration

	hasStarted bool
	running    bool // an in-flight call exists; gates Start for non-reentrant ops
	pending    int
	completed  bool // guards HandleStreamComplete idempotence (spec §8)
	cancel     context.CancelFunc
}

// New builds a Handler with one port.Handler per declared input and output
// port.
func New(nodeID string, sig graph.Signature, sink EventSink) *Handler {
	h := &Handler{
		nodeID:        nodeID,
		sig:           sig,
		sink:          sink,
		inputs:        make(map[string]*port.Handler, len(sig.Inputs)),
		outputs:       make(map[string]*port.Handler, len(sig.Outputs)),
		outputTimeout: DefaultOutputTimeout,
	}
	for _, p := range sig.Inputs {
		h.inputs[p.Name] = port.New(p.Name, port.In)
	}
	for _, p := range sig.Outputs {
		h.outputs[p.Name] = port.New(p.Name, port.Out)
	}
	return h
}

// WithOutputTimeout overrides the default per-packet output timeout.
func (h *Handler) WithOutputTimeout(d time.Duration) *Handler {
	h.outputTimeout = d
	return h
}

// NodeID returns the handler's owning node id.
func (h *Handler) NodeID() string { return h.nodeID }

// InputPort returns the named input port handler, or nil if none declared.
func (h *Handler) InputPort(name string) *port.Handler { return h.inputs[name] }

// OutputPort returns the named output port handler, or nil if none declared.
func (h *Handler) OutputPort(name string) *port.Handler { return h.outputs[name] }

// InputNames returns every declared input port name.
func (h *Handler) InputNames() []string {
	names := make([]string, 0, len(h.inputs))
	for n := range h.inputs {
		names = append(names, n)
	}
	return names
}

// OutputNames returns every declared output port name.
func (h *Handler) OutputNames() []string {
	names := make([]string, 0, len(h.outputs))
	for n := range h.outputs {
		names = append(names, n)
	}
	return names
}

// BufferIn deposits a packet into the named input port (spec §4.4).
func (h *Handler) BufferIn(portName string, p packet.Packet) error {
	pt, ok := h.inputs[portName]
	if !ok {
		return werrors.NewExecutionError(werrors.MissingPortName, "", h.nodeID, "no such input port: "+portName)
	}
	_, err := pt.Buffer(p)
	return err
}

// BufferOut deposits a packet into the named output port.
func (h *Handler) BufferOut(portName string, p packet.Packet) error {
	pt, ok := h.outputs[portName]
	if !ok {
		return werrors.NewExecutionError(werrors.MissingPortName, "", h.nodeID, "no such output port: "+portName)
	}
	_, err := pt.Buffer(p)
	return err
}

// DrainInputs performs the non-blocking "collect everything currently
// buffered" read across every input port, called exactly once per operation
// invocation per spec §4.4.
func (h *Handler) DrainInputs() []packet.Packet {
	var all []packet.Packet
	for _, pt := range h.inputs {
		all = append(all, pt.Drain()...)
	}
	return all
}

// Ready reports the readiness predicate of spec §4.7: every input port has
// ≥ 1 packet buffered, or is DoneClosed and the operation is not reentrant
// for that port. A generator (no declared inputs) is always ready.
func (h *Handler) Ready() bool {
	if len(h.inputs) == 0 {
		return true
	}
	for _, pt := range h.inputs {
		if pt.HasBuffered() {
			continue
		}
		if pt.IsClosed() && !h.sig.Reentrant {
			continue
		}
		return false
	}
	return true
}

// ReadyToComplete reports spec §4.7's ready-to-complete predicate: every
// input port DoneClosed and the instance no longer running.
func (h *Handler) ReadyToComplete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending > 0 {
		return false
	}
	for _, pt := range h.inputs {
		if !pt.IsClosed() {
			return false
		}
	}
	return true
}

// HasStarted reports whether Start has ever spawned this instance's task.
func (h *Handler) HasStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasStarted
}

// Running reports whether a call is currently in flight. The CallReady
// event handler consults this before draining input: for a non-reentrant
// operation with a call already running, draining now would discard
// packets no in-flight call will ever see (spec §4.4: input accumulates
// until the current call completes, then starts a fresh one over it).
func (h *Handler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Start spawns a new call for the operation. Idempotent while a call is
// already in flight for a non-reentrant operation (spec §4.4: "the loop
// buffers input until the in-flight call completes"); once that call's
// output stream has ended, a later Start begins a fresh call over
// whatever input has accumulated meanwhile. Reentrant operations spawn a
// fresh concurrent call on every invocation, multiplexed by call context on
// the output stream (spec §9). Start renders no config itself — the caller
// (the CallReady event handler) is responsible for resolving
// root_config/op_config against inherent data first.
func (h *Handler) Start(ctx context.Context, contract operation.Contract, inv operation.Invocation, config map[string]any, callback operation.Callback) error {
	h.mu.Lock()
	if h.running && !h.sig.Reentrant {
		h.mu.Unlock()
		return nil
	}
	h.hasStarted = true
	h.running = true
	h.completed = false
	h.pending++
	callCtx, cancel := context.WithCancel(ctx)
	if h.cancel == nil {
		h.cancel = cancel
	}
	h.mu.Unlock()

	out, err := h.invokeContract(callCtx, contract, inv, config, callback)
	if err != nil {
		h.sink.OpErr(h.nodeID, packet.FatalErr("", fmt.Sprintf("operation %s failed to start: %v", h.nodeID, err)), true)
		h.completeCall()
		return err
	}
	go h.runOutputHandler(callCtx, out)
	return nil
}

// invokeContract calls contract.Handle with a recover guard: a component
// that panics before ever returning a channel (as opposed to panicking
// later, inside its own producer goroutine — which only that goroutine's
// own recover can catch) must not take the whole process down with it.
func (h *Handler) invokeContract(ctx context.Context, contract operation.Contract, inv operation.Invocation, config map[string]any, callback operation.Callback) (out <-chan packet.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked before producing a stream: %v", h.nodeID, r)
		}
	}()
	return contract.Handle(ctx, inv, config, callback)
}

// Cancel requests cooperative cancellation of any running call (spec §5).
func (h *Handler) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// runOutputHandler is the output-handler task body of spec §4.4.
func (h *Handler) runOutputHandler(ctx context.Context, out <-chan packet.Packet) {
	defer func() {
		if r := recover(); r != nil {
			h.sink.OpErr(h.nodeID, packet.FatalErr("", fmt.Sprintf("operation %s panicked: %v", h.nodeID, r)), true)
			h.completeCall()
		}
	}()

	hanging := make(map[string]bool, len(h.outputs))
	for name := range h.outputs {
		hanging[name] = false
	}
	received := 0
	timer := time.NewTimer(h.outputTimeout)
	defer timer.Stop()

	for {
		select {
		case p, ok := <-out:
			if !ok {
				h.closeStream(received, hanging)
				h.completeCall()
				return
			}
			received++
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(h.outputTimeout)

			if p.IsFatal() {
				if h.routeToErrorPort(p) {
					hanging["<error>"] = true
					h.sink.Data(h.nodeID, "<error>")
					continue
				}
				h.sink.OpErr(h.nodeID, p, true)
				h.completeCall()
				return
			}
			if p.IsNoop() {
				continue
			}
			if _, known := h.outputs[p.Port()]; !known {
				h.sink.OpErr(h.nodeID, packet.FatalErr(p.Port(), "node "+h.nodeID+" emitted unknown output port "+p.Port()), true)
				h.completeCall()
				return
			}
			if !p.IsDone() {
				hanging[p.Port()] = true
			} else {
				delete(hanging, p.Port())
			}
			if err := h.BufferOut(p.Port(), p); err != nil {
				h.sink.OpErr(h.nodeID, packet.FatalErr(p.Port(), err.Error()), true)
				h.completeCall()
				return
			}
			if p.IsError() {
				h.sink.OpErr(h.nodeID, p, false)
			}
			h.sink.Data(h.nodeID, p.Port())

		case <-timer.C:
			h.sink.OpErr(h.nodeID, packet.FatalErr("", "Execution timed out waiting for output from operation "+h.nodeID), true)
			h.completeCall()
			return

		case <-ctx.Done():
			h.completeCall()
			return
		}
	}
}

// routeToErrorPort implements the conventional `<error>` output port: a node
// that declares one diverts an ExecutionError-classified fatal packet there
// as an ordinary error packet instead of aborting the transaction, mirroring
// the original interpreter's handle_error/error_port path. Reports whether
// the node declared the port (and therefore whether the fatal was handled).
func (h *Handler) routeToErrorPort(p packet.Packet) bool {
	if _, ok := h.outputs["<error>"]; !ok {
		return false
	}
	errP := packet.ErrPacket("<error>", p.Payload().Message())
	if err := h.BufferOut("<error>", errP); err != nil {
		return false
	}
	return true
}

// closeStream implements the stream-end branch of spec §4.4's output
// algorithm: zero packets on a node with declared outputs is treated as a
// likely panic; otherwise every still-hanging port is auto-closed with a
// synthetic done packet.
func (h *Handler) closeStream(received int, hanging map[string]bool) {
	if received == 0 && len(h.outputs) > 0 {
		h.sink.OpErr(h.nodeID, packet.FatalErr("", "operation "+h.nodeID+" produced no output (likely panic)"), true)
		return
	}
	for name, isHanging := range hanging {
		if !isHanging {
			continue
		}
		_ = h.BufferOut(name, packet.Done(name))
		h.sink.Data(h.nodeID, name)
	}
}

func (h *Handler) completeCall() {
	h.mu.Lock()
	if h.pending > 0 {
		h.pending--
	}
	h.running = false
	h.mu.Unlock()
	h.sink.CallComplete(h.nodeID)
}

// HandleStreamComplete transitions every still-Open output to
// UpstreamComplete, returning the ports that changed. It does nothing while
// a call is pending (completeCall decrements pending when a call's stream
// ends). It is idempotent: a second call after the first effective one
// returns an empty PortChanges (spec
// §8's "invoking handle_stream_complete twice is equivalent to invoking it
// once").
func (h *Handler) HandleStreamComplete() PortChanges {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.completed {
		return PortChanges{}
	}
	if h.pending > 0 {
		return PortChanges{}
	}
	h.completed = true

	var changed []string
	for name, pt := range h.outputs {
		if pt.Status() == port.Open {
			pt.MarkUpstreamComplete()
			changed = append(changed, name)
		}
	}
	return PortChanges{ClosedOutputs: changed}
}

// AcceptPackets buffers every packet onto its named input port, marking
// the corresponding port upstream-complete whenever the packet is a done
// packet (spec §4.4: "feeds the operation task via its input sink and
// completes the sink if all inputs are closed").
func (h *Handler) AcceptPackets(packets []packet.Packet) error {
	for _, p := range packets {
		if err := h.BufferIn(p.Port(), p); err != nil {
			return err
		}
		if p.IsDone() {
			if pt := h.inputs[p.Port()]; pt != nil {
				pt.MarkUpstreamComplete()
			}
		}
	}
	return nil
}
