// Package operation defines the polymorphic operation contract of spec
// §4.9: "handle(invocation, config, callback) → packet stream". Every
// in-process component, core built-in, and external adapter implements
// Contract; Handle is called by the instance package for graph nodes and
// by interpreter.Runtime.Invoke for link-callback invocations.
package operation

import (
	"context"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/packet"
)

// Inherent carries the invocation-wide data every operation may consult:
// a deterministic RNG seed and a wall-clock timestamp, both fixed at
// transaction start so that retries and sub-invocations observe the same
// values (spec §3: "the invocation inherent data (RNG seed, wall-clock
// timestamp)").
type Inherent struct {
	Seed        int64
	WallClockMS int64
}

// Invocation is the immutable bundle an operation receives on each call
// (spec §4.9).
type Invocation struct {
	TxID     string
	Origin   graph.Reference
	Target   graph.Reference
	Input    <-chan packet.Packet
	Inherent Inherent
}

// Callback is the link capability (§4.10) passed to every operation so it
// may invoke another operation within the same runtime. It is defined here,
// not in package link, so that Contract implementations can depend on
// operation alone; package link provides the concrete constructor that
// closes over a running interpreter.
type Callback func(ctx context.Context, target graph.Reference, opName string, input <-chan packet.Packet, inherent Inherent, config map[string]any) (<-chan packet.Packet, error)

// Contract is the operation entry point every component, core built-in, or
// external adapter implements.
//
// The returned channel is consumed by the instance package's output
// handler (spec §4.4). An operation MUST close its returned channel when
// done; failure to do so is recovered as a fatal timeout error by the
// instance's output-handler loop, never by Contract implementations
// themselves.
type Contract interface {
	Handle(ctx context.Context, inv Invocation, config map[string]any, callback Callback) (<-chan packet.Packet, error)
}

// Func adapts a plain function to Contract, mirroring how core built-ins
// (sender, pluck, merge, ...) are registered without a dedicated type per
// operation.
type Func func(ctx context.Context, inv Invocation, config map[string]any, callback Callback) (<-chan packet.Packet, error)

// Handle implements Contract.
func (f Func) Handle(ctx context.Context, inv Invocation, config map[string]any, callback Callback) (<-chan packet.Packet, error) {
	return f(ctx, inv, config, callback)
}
