// Package registry implements the component registry of spec §4.5: a
// namespace → ComponentHandler map that resolves operation references to
// invokable handlers. Lookups are read-mostly; registration happens only
// during transaction setup (spec §4.5, §5).
package registry

import (
	"sync"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
)

// ComponentHandler is what one namespace contributes to the registry: the
// declared signature and runtime contract for each operation it exposes.
type ComponentHandler interface {
	Signature(opName string) (graph.Signature, bool)
	Contract(opName string) (operation.Contract, bool)
}

// Registry maps namespace → ComponentHandler. Per spec §9's Open Question
// 1, the rewrite canonicalizes exclusively on the "self" namespace: a
// schematic that wants to recurse into its own operations is registered
// under "self", and any reference by the schematic's own name is treated as
// sugar for "self" via RegisterSelfAlias.
type Registry struct {
	mu         sync.RWMutex
	components map[string]ComponentHandler
	aliases    map[string]bool // schematic names that resolve to "self"
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		components: make(map[string]ComponentHandler),
		aliases:    make(map[string]bool),
	}
}

// Register binds a namespace (e.g. "core", "self", "keyvalue") to its
// handler.
func (r *Registry) Register(namespace string, h ComponentHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[namespace] = h
}

// RegisterSelfAlias marks schematicName as sugar for the "self" namespace
// (spec §9, Open Question 1).
func (r *Registry) RegisterSelfAlias(schematicName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[schematicName] = true
}

func (r *Registry) canonicalize(namespace string) string {
	if r.aliases[namespace] {
		return "self"
	}
	return namespace
}

// Resolve implements graph.OperationResolver: looks up an operation's
// declared signature, canonicalizing schematic-name references to "self"
// first.
func (r *Registry) Resolve(namespace, opName string) (graph.Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.components[r.canonicalize(namespace)]
	if !ok {
		return graph.Signature{}, false
	}
	return h.Signature(opName)
}

// Contract resolves an operation reference to its invokable runtime
// contract, used by the interpreter when spawning a node's task.
func (r *Registry) Contract(namespace, opName string) (operation.Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.components[r.canonicalize(namespace)]
	if !ok {
		return nil, false
	}
	return h.Contract(opName)
}

var _ graph.OperationResolver = (*Registry)(nil)
