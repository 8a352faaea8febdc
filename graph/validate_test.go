package graph

import (
	"fmt"
	"testing"

	"github.com/wickrt/wick/werrors"
)

type fakeResolver map[string]Signature

func (f fakeResolver) Resolve(namespace, operation string) (Signature, bool) {
	sig, ok := f[namespace+"::"+operation]
	return sig, ok
}

func identitySig() Signature {
	return Signature{
		Inputs:  []Port{{Name: "input", Type: "any"}},
		Outputs: []Port{{Name: "output", Type: "any"}},
	}
}

func TestFromDefIdentitySchematic(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{"self::id": identitySig()}
	def := SchematicDef{
		Name: "identity",
		Nodes: []NodeDef{
			{ID: "id", Ref: Reference{Namespace: "self", Operation: "id"}},
		},
		Connections: []ConnectionDef{
			{From: Endpoint{Node: InputNode, Port: "in"}, To: Endpoint{Node: "id", Port: "input"}},
			{From: Endpoint{Node: "id", Port: "output"}, To: Endpoint{Node: OutputNode, Port: "out"}},
		},
	}

	g, err := FromDef([]SchematicDef{def}, resolver)
	if err != nil {
		t.Fatalf("FromDef: %v", err)
	}
	sch, ok := g.Schematic("identity")
	if !ok {
		t.Fatalf("schematic not found")
	}
	if len(sch.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3 (input, output, id)", len(sch.Nodes))
	}
	idIdx, ok := sch.NodeByID("id")
	if !ok {
		t.Fatalf("node id not found")
	}
	if len(sch.IncomingOnPort(idIdx, "input")) != 1 {
		t.Fatalf("expected 1 incoming connection on id.input")
	}
}

func TestFromDefAccumulatesAllErrors(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{"self::id": identitySig()}
	def := SchematicDef{
		Name: "broken",
		Nodes: []NodeDef{
			{ID: "id", Ref: Reference{Namespace: "self", Operation: "id"}},
			{ID: "ghost", Ref: Reference{Namespace: "self", Operation: "missing"}},
		},
		Connections: []ConnectionDef{
			// References a node that doesn't exist: MissingNode.
			{From: Endpoint{Node: "nosuch", Port: "out"}, To: Endpoint{Node: "id", Port: "input"}},
			// <output> has no outputs: InvalidBoundaryConnection.
			{From: Endpoint{Node: OutputNode, Port: "x"}, To: Endpoint{Node: "id", Port: "input"}},
		},
	}

	_, err := FromDef([]SchematicDef{def}, resolver)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	verrs, ok := err.(*werrors.ValidationErrors)
	if !ok {
		t.Fatalf("err is %T, want *werrors.ValidationErrors", err)
	}

	seen := map[werrors.ValidationKind]int{}
	for _, e := range verrs.Errors {
		seen[e.Kind]++
	}
	for _, want := range []werrors.ValidationKind{
		werrors.MissingNode, werrors.UnknownOperation, werrors.InvalidBoundaryConnection, werrors.UnwiredInput,
	} {
		if seen[want] == 0 {
			t.Errorf("expected at least one %s error, errors were: %v", want, verrs.Errors)
		}
	}
}

func TestFromDefRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{}
	def := SchematicDef{
		Name:  "s",
		Nodes: []NodeDef{{ID: "n", Ref: Reference{Namespace: "self", Operation: "nope"}}},
	}
	_, err := FromDef([]SchematicDef{def}, resolver)
	if err == nil {
		t.Fatalf("expected UnknownOperation error")
	}
}

func TestFromDefRejectsSelfLoopThroughBoundary(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{}
	def := SchematicDef{
		Name: "s",
		Connections: []ConnectionDef{
			{From: Endpoint{Node: InputNode, Port: "a"}, To: Endpoint{Node: OutputNode, Port: "a"}},
		},
	}
	_, err := FromDef([]SchematicDef{def}, resolver)
	if err == nil {
		t.Fatalf("expected InvalidBoundaryConnection error")
	}
}

func TestFromDefRejectsCycleByDefault(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{"self::id": identitySig()}
	def := SchematicDef{
		Name: "cyclic",
		Nodes: []NodeDef{
			{ID: "a", Ref: Reference{Namespace: "self", Operation: "id"}},
			{ID: "b", Ref: Reference{Namespace: "self", Operation: "id"}},
		},
		Connections: []ConnectionDef{
			{From: Endpoint{Node: "a", Port: "output"}, To: Endpoint{Node: "b", Port: "input"}},
			{From: Endpoint{Node: "b", Port: "output"}, To: Endpoint{Node: "a", Port: "input"}},
		},
	}
	_, err := FromDef([]SchematicDef{def}, resolver)
	if err == nil {
		t.Fatalf("expected cycle to be rejected")
	}
}

func TestFromDefAllowsCycleWhenOptedIn(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{"self::id": identitySig()}
	def := SchematicDef{
		Name:        "cyclic",
		AllowCycles: true,
		Nodes: []NodeDef{
			{ID: "a", Ref: Reference{Namespace: "self", Operation: "id"}},
			{ID: "b", Ref: Reference{Namespace: "self", Operation: "id"}},
		},
		Connections: []ConnectionDef{
			{From: Endpoint{Node: "a", Port: "output"}, To: Endpoint{Node: "b", Port: "input"}},
			{From: Endpoint{Node: "b", Port: "output"}, To: Endpoint{Node: "a", Port: "input"}},
		},
	}
	if _, err := FromDef([]SchematicDef{def}, resolver); err != nil {
		t.Fatalf("FromDef with AllowCycles: %v", err)
	}
}

func TestDecorateCoreNodesPopulatesMergeInputs(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{
		"core::merge": {Dynamic: true, Outputs: []Port{{Name: "output", Type: "object"}}},
	}
	def := SchematicDef{
		Name: "m",
		Nodes: []NodeDef{
			{ID: "merge1", Ref: Reference{Namespace: "core", Operation: "merge"}, Config: map[string]any{
				"inputs": []string{"a", "b"},
			}},
		},
	}
	decorated := DecorateCoreNodes(def, resolver)
	if len(decorated.Nodes[0].Inputs) != 2 {
		t.Fatalf("expected 2 synthesized inputs, got %d", len(decorated.Nodes[0].Inputs))
	}
}

func TestDecorateCoreNodesPopulatesSwitchOutputs(t *testing.T) {
	t.Parallel()

	resolver := fakeResolver{
		"core::switch": {Dynamic: true, Inputs: []Port{{Name: "input", Type: "any"}}},
	}
	def := SchematicDef{
		Name: "s",
		Nodes: []NodeDef{
			{ID: "sw1", Ref: Reference{Namespace: "core", Operation: "switch"}, Config: map[string]any{
				"discriminator": []any{"kind"},
				"branches":      float64(3),
			}},
		},
	}
	decorated := DecorateCoreNodes(def, resolver)
	outputs := decorated.Nodes[0].Outputs
	if len(outputs) != 3 {
		t.Fatalf("expected 3 synthesized outputs, got %d", len(outputs))
	}
	for i, p := range outputs {
		want := fmt.Sprintf("out%d", i)
		if p.Name != want {
			t.Fatalf("output %d = %q, want %q", i, p.Name, want)
		}
	}
}
