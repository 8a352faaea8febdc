package config

import (
	"fmt"
	"strings"

	"github.com/wickrt/wick/graph"
)

// ToSchematicDef lowers an embedded composite flow (spec §6's "flow
// expression language") into the graph.SchematicDef the core interpreter
// builds a Schematic from. name becomes the resulting schematic's Name.
func (f *CompositeFlow) ToSchematicDef(name string) (graph.SchematicDef, error) {
	def := graph.SchematicDef{Name: name, AllowCycles: f.AllowCycles}

	for _, n := range f.Nodes {
		ref, err := parseReference(n.Operation)
		if err != nil {
			return graph.SchematicDef{}, fmt.Errorf("config: node %q: %w", n.ID, err)
		}
		def.Nodes = append(def.Nodes, graph.NodeDef{
			ID:     n.ID,
			Ref:    ref,
			Config: n.Config,
		})
	}

	for i, c := range f.Connections {
		from, err := parseEndpoint(c.From)
		if err != nil {
			return graph.SchematicDef{}, fmt.Errorf("config: connection %d from %q: %w", i, c.From, err)
		}
		to, err := parseEndpoint(c.To)
		if err != nil {
			return graph.SchematicDef{}, fmt.Errorf("config: connection %d to %q: %w", i, c.To, err)
		}
		def.Connections = append(def.Connections, graph.ConnectionDef{From: from, To: to})
	}

	return def, nil
}

// parseReference decodes a "namespace::operation" string into a
// graph.Reference, the inverse of graph.Reference.String.
func parseReference(s string) (graph.Reference, error) {
	parts := strings.SplitN(s, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return graph.Reference{}, fmt.Errorf("malformed operation reference %q, want namespace::operation", s)
	}
	return graph.Reference{Namespace: parts[0], Operation: parts[1]}, nil
}

// parseEndpoint decodes a "node.port" string into a graph.Endpoint. The
// boundary node ids <input>/<output> carry no dot themselves, so a bare
// "<input>.out" or "<output>.in" splits the same way as any other node.
func parseEndpoint(s string) (graph.Endpoint, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return graph.Endpoint{}, fmt.Errorf("malformed endpoint %q, want node.port", s)
	}
	return graph.Endpoint{Node: s[:idx], Port: s[idx+1:]}, nil
}

// Schematics lowers every Composite-implementation operation in m into a
// named graph.SchematicDef, keyed by operation name. Operations backed by
// any other ImplementationKind are skipped: they have no embedded flow to
// lower.
func (m *ComponentManifest) Schematics() ([]graph.SchematicDef, error) {
	var defs []graph.SchematicDef
	for _, op := range m.Operations {
		if op.Implementation.Kind != ImplComposite || op.Implementation.Composite == nil {
			continue
		}
		def, err := op.Implementation.Composite.ToSchematicDef(op.Name)
		if err != nil {
			return nil, fmt.Errorf("config: operation %q: %w", op.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
