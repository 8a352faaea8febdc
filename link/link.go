// Package link implements the link callback of spec §4.10: the capability
// that lets an operation re-enter the runtime to invoke another operation
// in the same process.
package link

import (
	"context"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
)

// Runtime is the subset of the interpreter a link callback needs: the
// ability to submit a sub-invocation and stream back its result. The
// interpreter package implements this by calling the target operation's
// contract directly under a fresh sub-transaction id derived from the
// parent's tx_id; the call does not go through its dispatch channel.
type Runtime interface {
	Invoke(ctx context.Context, target graph.Reference, opName string, input <-chan packet.Packet, inherent operation.Inherent, config map[string]any, parentTxID string) (<-chan packet.Packet, error)
}

// NewCallback builds an operation.Callback closing over rt and the calling
// operation's own tx_id, so every re-entrant call it makes is attributed to
// the same parent for tracing.
func NewCallback(rt Runtime, parentTxID string) operation.Callback {
	return func(ctx context.Context, target graph.Reference, opName string, input <-chan packet.Packet, inherent operation.Inherent, config map[string]any) (<-chan packet.Packet, error) {
		return rt.Invoke(ctx, target, opName, input, inherent, config, parentTxID)
	}
}
