package config

import (
	"testing"

	"github.com/wickrt/wick/graph"
)

func TestToSchematicDefLowersFlow(t *testing.T) {
	t.Parallel()

	flow := &CompositeFlow{
		Nodes: []FlowNode{
			{ID: "a", Operation: "core::pluck", Config: map[string]any{"path": []any{"x"}}},
		},
		Connections: []FlowConnection{
			{From: "<input>.input", To: "a.input"},
			{From: "a.output", To: "<output>.output"},
		},
	}

	def, err := flow.ToSchematicDef("demo")
	if err != nil {
		t.Fatalf("ToSchematicDef: %v", err)
	}
	if def.Name != "demo" {
		t.Fatalf("name = %q", def.Name)
	}
	if len(def.Nodes) != 1 || def.Nodes[0].ID != "a" {
		t.Fatalf("nodes = %+v", def.Nodes)
	}
	want := graph.ConnectionDef{
		From: graph.Endpoint{Node: "<input>", Port: "input"},
		To:   graph.Endpoint{Node: "a", Port: "input"},
	}
	if def.Connections[0] != want {
		t.Fatalf("connection = %+v, want %+v", def.Connections[0], want)
	}
}

func TestToSchematicDefRejectsMalformedReference(t *testing.T) {
	t.Parallel()

	flow := &CompositeFlow{
		Nodes: []FlowNode{{ID: "a", Operation: "bad-ref-no-separator"}},
	}
	if _, err := flow.ToSchematicDef("demo"); err == nil {
		t.Fatalf("expected an error for a malformed operation reference")
	}
}

func TestToSchematicDefRejectsMalformedEndpoint(t *testing.T) {
	t.Parallel()

	flow := &CompositeFlow{
		Nodes: []FlowNode{{ID: "a", Operation: "core::pluck"}},
		Connections: []FlowConnection{
			{From: "noport", To: "a.input"},
		},
	}
	if _, err := flow.ToSchematicDef("demo"); err == nil {
		t.Fatalf("expected an error for a malformed endpoint")
	}
}

func TestComponentManifestSchematicsSkipsNonComposite(t *testing.T) {
	t.Parallel()

	m := &ComponentManifest{
		Operations: []OperationDef{
			{Name: "sql_op", Implementation: Implementation{Kind: ImplSql, Sql: &SqlStatement{Statement: "SELECT 1"}}},
		},
	}
	defs, err := m.Schematics()
	if err != nil {
		t.Fatalf("Schematics: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("defs = %+v, want none for a non-composite operation", defs)
	}
}
