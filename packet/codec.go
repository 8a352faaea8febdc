package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned by Decode when the stream ends mid-record.
var ErrTruncated = errors.New("packet: truncated wire record")

// Encode writes p's length-prefixed binary wire record (spec §6):
// port (u16 length + utf8 bytes), flags (u8), payload kind (u8), payload
// (u32 length + bytes for Ok/Err, nothing for Empty).
func Encode(w io.Writer, p Packet) error {
	if len(p.port) > 0xFFFF {
		return fmt.Errorf("packet: port name too long (%d bytes)", len(p.port))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(p.port))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, p.port); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(p.flags)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(p.payload.kind)); err != nil {
		return err
	}
	switch p.payload.kind {
	case KindOk:
		return writeFramed(w, p.payload.bytes)
	case KindErr:
		return writeFramed(w, []byte(p.payload.err))
	default:
		return nil
	}
}

func writeFramed(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Decode reads one wire record produced by Encode. A malformed or truncated
// record is surfaced as a returned error — per §4.1, "decoding failure
// produces a packet-level error, not an exception" — callers that need a
// packet-level Err payload should wrap the error with ErrPacket themselves.
func Decode(r io.Reader) (Packet, error) {
	var portLen uint16
	if err := binary.Read(r, binary.BigEndian, &portLen); err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	portBuf := make([]byte, portLen)
	if _, err := io.ReadFull(r, portBuf); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	var flags, kind uint8
	if err := binary.Read(r, binary.BigEndian, &flags); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	p := Packet{port: string(portBuf), flags: Flags(flags)}
	switch Kind(kind) {
	case KindOk:
		data, err := readFramed(r)
		if err != nil {
			return Packet{}, err
		}
		p.payload = Ok(data)
	case KindErr:
		data, err := readFramed(r)
		if err != nil {
			return Packet{}, err
		}
		p.payload = Err(string(data))
	default:
		p.payload = Empty()
	}
	return p, nil
}

func readFramed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return buf, nil
}

// RoundTrip encodes then decodes p, for callers (and tests) that want to
// verify the decode∘encode ≡ identity property of spec §8 directly.
func RoundTrip(p Packet) (Packet, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return Packet{}, err
	}
	return Decode(&buf)
}
