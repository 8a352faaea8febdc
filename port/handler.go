// Package port implements the per-port FIFO buffer and status state
// machine of spec §3/§4.3: Open → UpstreamComplete → DoneClosing →
// DoneClosed, monotonic, with at-most-once delivery.
package port

import (
	"sync"

	"github.com/wickrt/wick/packet"
)

// Status is the four-state port lifecycle of spec §3.
type Status uint8

const (
	// Open: upstream may still send.
	Open Status = iota
	// UpstreamComplete: every upstream source has signaled done; the port
	// may still hold buffered packets.
	UpstreamComplete
	// DoneClosing: a terminal done packet was accepted but the buffer is
	// not yet empty.
	DoneClosing
	// DoneClosed: no further packets may ever be pushed; buffer empty.
	DoneClosed
)

func (s Status) String() string {
	switch s {
	case Open:
		return "Open"
	case UpstreamComplete:
		return "UpstreamComplete"
	case DoneClosing:
		return "DoneClosing"
	case DoneClosed:
		return "DoneClosed"
	default:
		return "Unknown"
	}
}

// PushResult reports what Buffer did with an incoming packet.
type PushResult uint8

const (
	// Buffered: the packet was appended to the FIFO.
	Buffered PushResult = iota
	// Consumed: the packet closed the port directly without ever sitting
	// in the buffer (an empty buffer receiving a done packet).
	Consumed
)

// DefaultMaxBuffer is the default per-port backpressure limit (spec §4.3).
const DefaultMaxBuffer = 4096

// ErrBufferOverflow is returned by Buffer when a port's packet count
// exceeds its configured maximum (spec §4.3: "the scheduler shall refuse to
// admit new packets ... and propagate a fatal transaction error").
type ErrBufferOverflow struct {
	Port     string
	Buffered int
	Max      int
}

func (e *ErrBufferOverflow) Error() string {
	return "port: buffer overflow"
}

// Handler is the per-port buffer and status state machine of spec §4.3.
// It guarantees at-most-once delivery: a Take that returns a packet cannot
// return it again. A Handler is safe for concurrent use, though spec §5
// intends only the interpreter's single event-loop task to mutate it.
type Handler struct {
	mu        sync.Mutex
	name      string
	direction Direction
	status    Status
	buf       []packet.Packet
	maxBuffer int
}

// Direction mirrors graph.Direction without importing graph, keeping port
// a leaf package.
type Direction uint8

const (
	In Direction = iota
	Out
)

// New constructs a Handler for the named port in the given direction, with
// the default backpressure limit.
func New(name string, dir Direction) *Handler {
	return &Handler{name: name, direction: dir, maxBuffer: DefaultMaxBuffer}
}

// WithMaxBuffer overrides the default backpressure limit.
func (h *Handler) WithMaxBuffer(max int) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxBuffer = max
	return h
}

// Name returns the port's name.
func (h *Handler) Name() string { return h.name }

// Status returns the port's current status.
func (h *Handler) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Len returns the number of packets currently buffered.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

// Buffer deposits a packet into the port (spec §4.3's producer side). A
// done-flagged packet transitions the port to DoneClosing if the buffer is
// non-empty, or straight to DoneClosed if it is empty. Pushing to a
// DoneClosed port is a programmer error and panics, per spec §3
// ("pushing to a DoneClosed port is a programmer error").
func (h *Handler) Buffer(p packet.Packet) (PushResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == DoneClosed {
		panic("port: Buffer called on a DoneClosed port " + h.name)
	}

	if p.IsDone() {
		if len(h.buf) == 0 {
			h.status = DoneClosed
			return Consumed, nil
		}
		h.status = DoneClosing
		h.buf = append(h.buf, p)
		return Buffered, nil
	}

	if len(h.buf) >= h.maxBuffer {
		return Buffered, &ErrBufferOverflow{Port: h.name, Buffered: len(h.buf), Max: h.maxBuffer}
	}
	h.buf = append(h.buf, p)
	return Buffered, nil
}

// Take removes and returns the oldest buffered packet, or (Packet{},
// false) if the buffer is empty. Emptying a DoneClosing port transitions it
// synchronously to DoneClosed (spec §4.3).
func (h *Handler) Take() (packet.Packet, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.takeLocked()
}

func (h *Handler) takeLocked() (packet.Packet, bool) {
	if len(h.buf) == 0 {
		return packet.Packet{}, false
	}
	p := h.buf[0]
	h.buf = h.buf[1:]
	if len(h.buf) == 0 && h.status == DoneClosing {
		h.status = DoneClosed
	}
	return p, true
}

// Drain removes and returns every currently buffered packet, in order. It
// is the non-blocking "collect everything buffered right now" primitive
// instance.Handler.DrainInputs is built on (spec §4.4).
func (h *Handler) Drain() []packet.Packet {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]packet.Packet, 0, len(h.buf))
	for {
		p, ok := h.takeLocked()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// MarkUpstreamComplete transitions Open → UpstreamComplete. It is a no-op
// if the port has already progressed past Open (monotonic transitions
// only, spec §3).
func (h *Handler) MarkUpstreamComplete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == Open {
		h.status = UpstreamComplete
	}
}

// IsClosed reports whether the port is DoneClosed — "once DoneClosed,
// take(p) yields None forever" (spec §8).
func (h *Handler) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == DoneClosed
}

// HasBuffered reports whether at least one packet is currently buffered.
func (h *Handler) HasBuffered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf) > 0
}
