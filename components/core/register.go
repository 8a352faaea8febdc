package core

import (
	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/wicklog"
)

// Handler implements registry.ComponentHandler for the "core" namespace
// (spec §4.8). Signatures are fixed except for merge and switch, which are
// Dynamic: their declared ports come from node configuration
// (graph.DecorateCoreNodes), not from Handler.
type Handler struct {
	log    wicklog.Logger
	merges *mergeRegistry
}

// NewHandler builds the core namespace's component handler. log may be
// nil, in which case core::log discards its messages instead of writing
// them anywhere.
func NewHandler(log wicklog.Logger) *Handler {
	return &Handler{log: log, merges: &mergeRegistry{states: make(map[string]*mergeState)}}
}

var signatures = map[string]graph.Signature{
	"sender": {
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"pluck": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"path"},
			"properties": map[string]any{
				"path": map[string]any{"type": "array"},
			},
		},
	},
	"merge": {
		Dynamic: true,
	},
	"drop": {
		Inputs: []graph.Port{{Name: "input", Type: "any"}},
	},
	"switch": {
		Inputs: []graph.Port{{Name: "input", Type: "any"}},
		Dynamic: true,
	},
	"log": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"error": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"panic": {
		Inputs: []graph.Port{{Name: "input", Type: "any"}},
	},
}

// Signature implements registry.ComponentHandler.
func (h *Handler) Signature(opName string) (graph.Signature, bool) {
	sig, ok := signatures[opName]
	return sig, ok
}

// Contract implements registry.ComponentHandler.
func (h *Handler) Contract(opName string) (operation.Contract, bool) {
	switch opName {
	case "sender":
		return operation.Func(Sender), true
	case "pluck":
		return operation.Func(Pluck), true
	case "merge":
		return operation.Func(h.Merge), true
	case "drop":
		return operation.Func(Drop), true
	case "switch":
		return operation.Func(Switch), true
	case "log":
		logf := func(format string, v ...any) {}
		if h.log != nil {
			logf = h.log.Info
		}
		return Log(logf), true
	case "error":
		return operation.Func(Error), true
	case "panic":
		return operation.Func(Panic), true
	default:
		return nil, false
	}
}
