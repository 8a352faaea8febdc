// Package wick implements a flow-graph interpreter: a runtime that executes
// schematics, directed dataflow graphs whose nodes are operations connected
// by typed, named ports. A schematic is invoked like a single operation —
// packets arrive on its input ports, flow through instantiated operations
// according to the graph, and emerge on its output ports.
//
// # Quick start
//
//	reg := registry.New()
//	reg.Register("core", core.NewHandler(nil))
//
//	g, err := graph.FromDef([]graph.SchematicDef{def}, reg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	rt := interpreter.New(g, reg, wicklog.NewDefaultLogger())
//	out, status, err := rt.Exec(ctx, def.Name,
//		packet.Stream(packet.Data("in", []byte(`"hello"`)), packet.Done("in")),
//		operation.Inherent{})
//
// # Package layout
//
// The core interpreter subsystem is split into leaf-first packages mirroring
// the dependency order of the design:
//
//   - packet:      typed packets carried across ports (C1)
//   - werrors:     validation and execution error taxonomies (C11)
//   - graph:       immutable schematic model and structural validation (C2)
//   - port:        per-port FIFO buffer and status state machine (C3)
//   - instance:    per-node runtime state and output-handler task (C4)
//   - registry:    namespace to component-handler resolution (C5)
//   - operation:   the operation contract invoked by the interpreter (C9)
//   - link:        the re-entrant link callback (C10)
//   - transaction:  one invocation of a schematic end to end (C6)
//   - interpreter: the dispatch channel and event loop (C7)
//   - components/core: sender, pluck, merge, drop, switch, and diagnostics (C8)
//
// External collaborators — config loading, sandboxed code hosts, triggers,
// and domain-specific components — live under components/, config/,
// trigger/, and wicklog/, and are consumed through the interfaces the core
// exposes rather than being part of the interpreter itself.
package wick
