package interpreter

import (
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/transaction"
)

// EventKind discriminates a dispatch-channel Event (spec §4.7's table).
type EventKind uint8

const (
	// EvCallReady: a node's inputs satisfy its readiness predicate.
	EvCallReady EventKind = iota
	// EvCallComplete: a node's output stream ended.
	EvCallComplete
	// EvOpErr: a node produced a fatal or signature-breaking error.
	EvOpErr
	// EvData: a packet was buffered on (Node, Port); check downstream
	// readiness.
	EvData
	// EvPing: wake the loop; reserved for timers and external triggers.
	EvPing
	// EvTxStart: admit a new transaction.
	EvTxStart
	// EvTxDone: terminate a transaction.
	EvTxDone
)

func (k EventKind) String() string {
	switch k {
	case EvCallReady:
		return "CallReady"
	case EvCallComplete:
		return "CallComplete"
	case EvOpErr:
		return "OpErr"
	case EvData:
		return "Data"
	case EvPing:
		return "Ping"
	case EvTxStart:
		return "TxStart"
	case EvTxDone:
		return "TxDone"
	default:
		return "Unknown"
	}
}

// Event is the dispatch channel's envelope: `Event { tx_id, kind, payload }`
// (spec §4.7). Only the fields relevant to Kind are populated.
type Event struct {
	TxID string
	Kind EventKind

	// Node/Port identify a node and one of its ports for EvData,
	// EvCallReady, EvCallComplete, and EvOpErr.
	Node string
	Port string

	// ErrPacket/Fatal carry an OpErr's payload and fatality.
	ErrPacket packet.Packet
	Fatal     bool

	// Tx carries the transaction being admitted, for EvTxStart.
	Tx *transaction.Transaction

	// FinalStatus carries the terminal status for EvTxDone.
	FinalStatus transaction.Status

	// Reason carries an EvPing's wake reason.
	Reason string
}
