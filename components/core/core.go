// Package core implements the built-in operations of spec §4.8: sender,
// pluck, merge, drop, switch, and the core::log/error/panic diagnostics.
// Every operation here is an operation.Func closing over its config,
// following the same handle(invocation, config, callback) → stream
// contract every other component implements (spec §4.9) — core has no
// special status in the registry beyond being the namespace every
// schematic gets for free.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
)

// decode unmarshals a packet's payload bytes into a generic JSON value.
// Packets carrying no Ok payload decode to nil.
func decode(p packet.Packet) (any, error) {
	if !p.HasData() {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(p.Payload().Bytes(), &v); err != nil {
		return nil, fmt.Errorf("core: decode payload: %w", err)
	}
	return v, nil
}

// encode marshals a value to a data packet on the named port.
func encode(port string, v any) packet.Packet {
	b, err := json.Marshal(v)
	if err != nil {
		return packet.ErrPacket(port, fmt.Sprintf("core: encode payload: %v", err))
	}
	return packet.Data(port, b)
}

// Sender is the `sender` generator of spec §4.8: a zero-input operation
// emitting one packet on `output` decoded from config's `data` field.
func Sender(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet, 2)
	go func() {
		defer close(out)
		for range inv.Input {
			// drain the synthetic generator-bootstrap packet; sender
			// ignores its own input entirely.
		}
		data, ok := config["data"]
		if !ok {
			data = nil
		}
		select {
		case out <- encode("output", data):
		case <-ctx.Done():
			return
		}
		out <- packet.Done("output")
	}()
	return out, nil
}

// Pluck is the `pluck` operation of spec §4.8: walks a decoded JSON value
// by config's `path`, emitting the selected sub-value on `output`, or an
// Err packet naming the path if the walk fails partway. Done packets pass
// through with a port rename.
func Pluck(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	path, err := stringPath(config["path"])
	if err != nil {
		return nil, err
	}
	out := make(chan packet.Packet, 4)
	go func() {
		defer close(out)
		for p := range inv.Input {
			if p.IsDone() {
				select {
				case out <- packet.Done("output"):
				case <-ctx.Done():
					return
				}
				continue
			}
			if p.IsNoop() {
				continue
			}
			v, err := decode(p)
			if err != nil {
				select {
				case out <- packet.ErrPacket("output", err.Error()):
				case <-ctx.Done():
				}
				continue
			}
			result, ok := walk(v, path)
			var reply packet.Packet
			if ok {
				reply = encode("output", result)
			} else {
				reply = packet.ErrPacket("output", fmt.Sprintf("could not retrieve data from object path %s", formatPath(path)))
			}
			select {
			case out <- reply:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func stringPath(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("core: pluck requires a config 'path' array")
	}
	path := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("core: pluck path segment %d is not a string", i)
		}
		path[i] = s
	}
	return path, nil
}

// formatPath renders a path as "[a,b,c]", matching pluck.rs's
// field.join(",") (spec §4.8).
func formatPath(path []string) string {
	s := "["
	for i, seg := range path {
		if i > 0 {
			s += ","
		}
		s += seg
	}
	return s + "]"
}

// walk descends v by path, treating a map segment as a key lookup and an
// array segment as a numeric index.
func walk(v any, path []string) (any, bool) {
	cur := v
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Drop is the `drop` operation of spec §4.8: consumes any input, produces
// no output.
func Drop(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for range inv.Input {
		}
	}()
	return out, nil
}

// Switch is the `switch` operation of spec §4.8: routes each input packet
// to one of N outputs named `out0`..`outN-1`, chosen by config's
// `discriminator` field applied as a JSON-path lookup on the packet.
func Switch(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	path, err := stringPath(config["discriminator"])
	if err != nil {
		return nil, err
	}
	branches, _ := config["branches"].(float64) // JSON numbers decode as float64
	n := int(branches)
	if n <= 0 {
		n = 2
	}
	out := make(chan packet.Packet, 4)
	go func() {
		defer close(out)
		closed := make(map[string]bool, n)
		portFor := func(i int) string { return fmt.Sprintf("out%d", i) }
		for p := range inv.Input {
			if p.IsDone() {
				for i := 0; i < n; i++ {
					name := portFor(i)
					if closed[name] {
						continue
					}
					closed[name] = true
					select {
					case out <- packet.Done(name):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			v, derr := decode(p)
			idx := 0
			if derr == nil {
				if sel, ok := walk(v, path); ok {
					idx = discriminatorIndex(sel, n)
				}
			}
			select {
			case out <- p.WithPort(portFor(idx)):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func discriminatorIndex(v any, n int) int {
	switch t := v.(type) {
	case float64:
		i := int(t)
		if i < 0 || i >= n {
			return 0
		}
		return i
	case bool:
		if t {
			return 1 % n
		}
		return 0
	default:
		return 0
	}
}

// Log, Error, and Panic are the core::log/error/panic diagnostic utilities
// of spec §4.8. Log passes its input through unchanged after writing it to
// the configured logger; Error emits a fatal Err packet on first input;
// Panic panics on first input and recovers in its own goroutine, emitting
// a fatal Err packet in its place (spec §8 scenario 6).
func Log(logf func(format string, v ...any)) operation.Func {
	return func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet, 4)
		go func() {
			defer close(out)
			for p := range inv.Input {
				if logf != nil {
					logf("core::log[%s]: %s", inv.Target.String(), p.String())
				}
				if p.IsNoop() {
					continue
				}
				select {
				case out <- p.WithPort("output"):
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

func Error(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet, 1)
	msg, _ := config["message"].(string)
	if msg == "" {
		msg = "core::error"
	}
	go func() {
		defer close(out)
		for range inv.Input {
			select {
			case out <- packet.FatalErr("output", msg):
			case <-ctx.Done():
			}
			return
		}
	}()
	return out, nil
}

func Panic(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- packet.FatalErr("", fmt.Sprintf("core::panic: %v", r))
			}
		}()
		for range inv.Input {
			panic("deliberate panic for node " + inv.Target.String())
		}
	}()
	return out, nil
}
