package registry

import (
	"context"
	"testing"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
)

type staticHandler struct {
	sigs map[string]graph.Signature
}

func (h *staticHandler) Signature(opName string) (graph.Signature, bool) {
	s, ok := h.sigs[opName]
	return s, ok
}

func (h *staticHandler) Contract(opName string) (operation.Contract, bool) {
	if _, ok := h.sigs[opName]; !ok {
		return nil, false
	}
	return operation.Func(func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet)
		close(out)
		return out, nil
	}), true
}

func TestResolveAndContractRoundTrip(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("self", &staticHandler{sigs: map[string]graph.Signature{
		"id": {Inputs: []graph.Port{{Name: "input", Type: "any"}}, Outputs: []graph.Port{{Name: "output", Type: "any"}}},
	}})

	sig, ok := r.Resolve("self", "id")
	if !ok {
		t.Fatalf("Resolve(self, id) not found")
	}
	if len(sig.Inputs) != 1 {
		t.Fatalf("unexpected signature: %+v", sig)
	}
	if _, ok := r.Contract("self", "id"); !ok {
		t.Fatalf("Contract(self, id) not found")
	}
	if _, ok := r.Resolve("self", "missing"); ok {
		t.Fatalf("Resolve(self, missing) unexpectedly found")
	}
}

func TestSelfAliasCanonicalizesSchematicName(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("self", &staticHandler{sigs: map[string]graph.Signature{
		"recurse": {},
	}})
	r.RegisterSelfAlias("my_schematic")

	if _, ok := r.Resolve("my_schematic", "recurse"); !ok {
		t.Fatalf("expected schematic-name reference to resolve via self alias")
	}
}

func TestUnknownNamespaceNotResolved(t *testing.T) {
	t.Parallel()

	r := New()
	if _, ok := r.Resolve("nope", "op"); ok {
		t.Fatalf("expected unregistered namespace to not resolve")
	}
}
