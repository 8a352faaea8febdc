// Package packet implements the typed message value that travels across a
// schematic's ports: a Packet carries a port name, a set of flags, and a
// payload that is either a decoded value, an error, or empty.
package packet

import "fmt"

// Flags is a bitset of the per-packet markers described in spec §3.
type Flags uint8

const (
	// DoneFlag marks a stream-of-stream boundary: no further packets will
	// ever be sent on the port this packet names.
	DoneFlag Flags = 1 << iota
	// OpenBracket begins a bracketed sub-stream on the port.
	OpenBracket
	// CloseBracket ends a bracketed sub-stream on the port.
	CloseBracket
	// Noop carries no data and exists only to drive scheduling; it is
	// otherwise ignored by the output handler.
	Noop
	// Fatal aborts the enclosing transaction when observed by the event
	// loop.
	Fatal
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Has reports whether every bit in want is set.
func (f Flags) Has(want Flags) bool { return f&want == want }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		bit  Flags
		name string
	}{
		{DoneFlag, "done"},
		{OpenBracket, "open_bracket"},
		{CloseBracket, "close_bracket"},
		{Noop, "noop"},
		{Fatal, "fatal"},
	}
	s := ""
	for _, n := range names {
		if f.has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// Kind discriminates a Payload's variant: Ok, Err, or Empty (spec §3).
type Kind uint8

const (
	// KindEmpty carries no bytes and no error; typically paired with Done
	// or Noop flags.
	KindEmpty Kind = iota
	// KindOk carries a successfully produced value.
	KindOk
	// KindErr carries an in-band, non-fatal error value (spec §7: "packet
	// level errors are data").
	KindErr
)

// Payload is the tagged union `{Ok(bytes), Err(message), Empty}` of spec §3.
type Payload struct {
	kind  Kind
	bytes []byte
	err   string
}

// Empty returns the Empty payload variant.
func Empty() Payload { return Payload{kind: KindEmpty} }

// Ok wraps a successfully decoded value's encoded bytes.
func Ok(data []byte) Payload { return Payload{kind: KindOk, bytes: data} }

// Err wraps an in-band error message.
func Err(message string) Payload { return Payload{kind: KindErr, err: message} }

// Kind reports which variant the payload holds.
func (p Payload) Kind() Kind { return p.kind }

// Bytes returns the Ok variant's bytes, or nil otherwise.
func (p Payload) Bytes() []byte { return p.bytes }

// Message returns the Err variant's message, or "" otherwise.
func (p Payload) Message() string { return p.err }

func (p Payload) String() string {
	switch p.kind {
	case KindOk:
		return string(p.bytes)
	case KindErr:
		return "Err(" + p.err + ")"
	default:
		return "Empty"
	}
}

// Packet is the immutable tuple `(port_name, flags, payload)` of spec §3.
// Packets are never mutated once constructed; port-rename and flag changes
// go through the With* constructors below, which return a new Packet.
type Packet struct {
	port    string
	flags   Flags
	payload Payload
}

// New builds a packet from its three constituent fields.
func New(port string, flags Flags, payload Payload) Packet {
	return Packet{port: port, flags: flags, payload: payload}
}

// Data builds a data packet holding a successfully-decoded value's bytes.
func Data(port string, data []byte) Packet {
	return Packet{port: port, payload: Ok(data)}
}

// Done builds an empty packet with the Done flag set on port.
func Done(port string) Packet {
	return Packet{port: port, flags: DoneFlag, payload: Empty()}
}

// ErrPacket builds an error packet on port (spec: `Packet::err(port, msg)`).
func ErrPacket(port, message string) Packet {
	return Packet{port: port, payload: Err(message)}
}

// FatalErr builds a Fatal+Err packet that aborts the enclosing transaction.
func FatalErr(port, message string) Packet {
	return Packet{port: port, flags: Fatal, payload: Err(message)}
}

// NoopPacket builds an empty packet carrying only the Noop flag, used to
// start generator operations that declare no inputs (spec §9, Open
// Question 2).
func NoopPacket(port string) Packet {
	return Packet{port: port, flags: Noop, payload: Empty()}
}

// Port returns the packet's destination/source port name.
func (p Packet) Port() string { return p.port }

// Flags returns the packet's flag set.
func (p Packet) Flags() Flags { return p.flags }

// Payload returns the packet's payload.
func (p Packet) Payload() Payload { return p.payload }

// IsDone reports whether the Done flag is set.
func (p Packet) IsDone() bool { return p.flags.has(DoneFlag) }

// IsError reports whether the payload is the Err variant.
func (p Packet) IsError() bool { return p.payload.kind == KindErr }

// IsFatal reports whether the Fatal flag is set.
func (p Packet) IsFatal() bool { return p.flags.has(Fatal) }

// IsNoop reports whether the Noop flag is set.
func (p Packet) IsNoop() bool { return p.flags.has(Noop) }

// IsOpenBracket reports whether the OpenBracket flag is set.
func (p Packet) IsOpenBracket() bool { return p.flags.has(OpenBracket) }

// IsCloseBracket reports whether the CloseBracket flag is set.
func (p Packet) IsCloseBracket() bool { return p.flags.has(CloseBracket) }

// HasData reports whether the packet carries an Ok payload.
func (p Packet) HasData() bool { return p.payload.kind == KindOk }

// WithPort returns a copy of p renamed to port, preserving flags and
// payload. Used by components (e.g. pluck) that forward a Done packet from
// an input port to an output port without allocating a fresh payload.
func (p Packet) WithPort(port string) Packet {
	p.port = port
	return p
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet{port:%s flags:%s payload:%s}", p.port, p.flags, p.payload)
}

// Stream is a convenience constructor for a slice of packets, mirroring how
// callers submit an invocation's input stream (spec §4.6).
func Stream(packets ...Packet) []Packet { return packets }
