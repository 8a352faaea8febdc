package interpreter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wickrt/wick/components/core"
	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/registry"
	"github.com/wickrt/wick/transaction"
)

// selfHandler registers a handful of test-only "self"-namespace operations
// alongside the real core namespace, mirroring how a schematic's own
// user-defined nodes sit beside the built-ins (spec §4.5).
type selfHandler struct {
	sigs      map[string]graph.Signature
	contracts map[string]operation.Contract
}

func newSelfHandler() *selfHandler {
	return &selfHandler{sigs: map[string]graph.Signature{}, contracts: map[string]operation.Contract{}}
}

func (h *selfHandler) add(name string, sig graph.Signature, c operation.Contract) *selfHandler {
	h.sigs[name] = sig
	h.contracts[name] = c
	return h
}

func (h *selfHandler) Signature(name string) (graph.Signature, bool) { s, ok := h.sigs[name]; return s, ok }
func (h *selfHandler) Contract(name string) (operation.Contract, bool) {
	c, ok := h.contracts[name]
	return c, ok
}

func identityContract() operation.Contract {
	return operation.Func(func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet, 4)
		go func() {
			defer close(out)
			for p := range inv.Input {
				select {
				case out <- p.WithPort("output"):
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	})
}

func panicOnFirstContract() operation.Contract {
	return operation.Func(func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet, 1)
		go func() {
			defer close(out)
			defer func() {
				if r := recover(); r != nil {
					out <- packet.FatalErr("", "operation p panicked: deliberate")
				}
			}()
			for range inv.Input {
				panic("deliberate test panic")
			}
		}()
		return out, nil
	})
}

func slowThenSleepContract(sleep time.Duration) operation.Contract {
	return operation.Func(func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet, 2)
		go func() {
			defer close(out)
			for range inv.Input {
				select {
				case out <- packet.Data("output", []byte(`"first"`)):
				case <-ctx.Done():
					return
				}
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
				}
			}
		}()
		return out, nil
	})
}

func buildRuntime(t *testing.T, def graph.SchematicDef, self *selfHandler) *Runtime {
	t.Helper()
	reg := registry.New()
	reg.Register("core", core.NewHandler(nil))
	if self != nil {
		reg.Register("self", self)
	}
	reg.RegisterSelfAlias(def.Name)

	g, err := graph.FromDef([]graph.SchematicDef{def}, reg)
	if err != nil {
		t.Fatalf("FromDef: %v", err)
	}
	return New(g, reg, nil)
}

func decodeJSON(t *testing.T, p packet.Packet) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(p.Payload().Bytes(), &v); err != nil {
		t.Fatalf("decode %v: %v", p, err)
	}
	return v
}

// Scenario 1: identity schematic (spec §8).
func TestScenarioIdentitySchematic(t *testing.T) {
	t.Parallel()

	def := graph.SchematicDef{
		Name: "identity",
		Nodes: []graph.NodeDef{
			{ID: "id", Ref: graph.Reference{Namespace: "self", Operation: "id"}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: graph.InputNode, Port: "in"}, To: graph.Endpoint{Node: "id", Port: "input"}},
			{From: graph.Endpoint{Node: "id", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
	self := newSelfHandler().add("id", graph.Signature{
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	}, identityContract())

	rt := buildRuntime(t, def, self)
	hello, _ := json.Marshal("hello")
	input := []packet.Packet{packet.Data("in", hello), packet.Done("in")}

	out, status, err := rt.Exec(context.Background(), "identity", input, operation.Inherent{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if status != transaction.Finished {
		t.Fatalf("status = %v, want Finished", status)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want 2 packets", out)
	}
	if v := decodeJSON(t, out[0]); v != "hello" {
		t.Fatalf("out[0] = %v, want hello", v)
	}
	if !out[1].IsDone() {
		t.Fatalf("out[1] = %+v, want a done packet", out[1])
	}
}

// Scenario 2: sender generator (spec §8).
func TestScenarioSenderGenerator(t *testing.T) {
	t.Parallel()

	def := graph.SchematicDef{
		Name: "sender-demo",
		Nodes: []graph.NodeDef{
			{ID: "s", Ref: graph.Reference{Namespace: "core", Operation: "sender"}, Config: map[string]any{"data": float64(42)}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: "s", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
	rt := buildRuntime(t, def, nil)

	out, status, err := rt.Exec(context.Background(), "sender-demo", nil, operation.Inherent{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if status != transaction.Finished {
		t.Fatalf("status = %v, want Finished", status)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want 2 packets", out)
	}
	if v := decodeJSON(t, out[0]); v != float64(42) {
		t.Fatalf("out[0] = %v, want 42", v)
	}
	if !out[1].IsDone() {
		t.Fatalf("out[1] = %+v, want a done packet", out[1])
	}
}

func pluckSchematic(name string, path []any) graph.SchematicDef {
	return graph.SchematicDef{
		Name: name,
		Nodes: []graph.NodeDef{
			{ID: "p", Ref: graph.Reference{Namespace: "core", Operation: "pluck"}, Config: map[string]any{"path": path}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: graph.InputNode, Port: "in"}, To: graph.Endpoint{Node: "p", Port: "input"}},
			{From: graph.Endpoint{Node: "p", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
}

// Scenario 3: pluck (spec §8).
func TestScenarioPluck(t *testing.T) {
	t.Parallel()

	def := pluckSchematic("pluck-demo", []any{"a", "0", "b"})
	rt := buildRuntime(t, def, nil)

	value, _ := json.Marshal(map[string]any{
		"a": []any{map[string]any{"b": "x"}, map[string]any{"b": "y"}},
	})
	input := []packet.Packet{packet.Data("in", value), packet.Done("in")}

	out, status, err := rt.Exec(context.Background(), "pluck-demo", input, operation.Inherent{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if status != transaction.Finished {
		t.Fatalf("status = %v, want Finished", status)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want 2 packets", out)
	}
	if v := decodeJSON(t, out[0]); v != "x" {
		t.Fatalf("out[0] = %v, want x", v)
	}
	if !out[1].IsDone() {
		t.Fatalf("out[1] = %+v, want a done packet", out[1])
	}
}

// Scenario 4: pluck miss (spec §8).
func TestScenarioPluckMiss(t *testing.T) {
	t.Parallel()

	def := pluckSchematic("pluck-miss", []any{"z"})
	rt := buildRuntime(t, def, nil)

	value, _ := json.Marshal(map[string]any{
		"a": []any{map[string]any{"b": "x"}, map[string]any{"b": "y"}},
	})
	input := []packet.Packet{packet.Data("in", value), packet.Done("in")}

	out, status, err := rt.Exec(context.Background(), "pluck-miss", input, operation.Inherent{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if status != transaction.Finished {
		t.Fatalf("status = %v, want Finished", status)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want 2 packets", out)
	}
	if !out[0].IsError() {
		t.Fatalf("out[0] = %+v, want an Err packet", out[0])
	}
	want := "could not retrieve data from object path [z]"
	if got := out[0].Payload().Message(); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
	if !out[1].IsDone() {
		t.Fatalf("out[1] = %+v, want a done packet", out[1])
	}
}

// timedSenderContract emits one packet after the given delay, then closes
// its stream without ever producing a done packet of its own — the
// instance output handler auto-closes the node's output port once its
// channel closes, so a single done packet still reaches the downstream
// fan-in port per producer.
func timedSenderContract(delay time.Duration, payload string) operation.Contract {
	return operation.Func(func(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
		out := make(chan packet.Packet, 1)
		go func() {
			defer close(out)
			for range inv.Input {
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			select {
			case out <- packet.Data("output", []byte(payload)):
			case <-ctx.Done():
			}
		}()
		return out, nil
	})
}

// Scenario 5: fan-in ordering (spec §8). Three generator nodes connect into
// sink's single "input" port: a1 and a2 stand for upstream a, emitting at
// t1 and t3; b emits once at t2, with t1 < t2 < t3. The fan-in port must deliver
// packets in arrival order: (a,t1), (b,t2), (a,t3).
func TestScenarioFanInOrdering(t *testing.T) {
	t.Parallel()

	def := graph.SchematicDef{
		Name: "fan-in-demo",
		Nodes: []graph.NodeDef{
			{ID: "a1", Ref: graph.Reference{Namespace: "self", Operation: "a1"}},
			{ID: "a2", Ref: graph.Reference{Namespace: "self", Operation: "a2"}},
			{ID: "b", Ref: graph.Reference{Namespace: "self", Operation: "b"}},
			{ID: "sink", Ref: graph.Reference{Namespace: "self", Operation: "sink"}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: "a1", Port: "output"}, To: graph.Endpoint{Node: "sink", Port: "input"}},
			{From: graph.Endpoint{Node: "b", Port: "output"}, To: graph.Endpoint{Node: "sink", Port: "input"}},
			{From: graph.Endpoint{Node: "a2", Port: "output"}, To: graph.Endpoint{Node: "sink", Port: "input"}},
			{From: graph.Endpoint{Node: "sink", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
	genSig := graph.Signature{Outputs: []graph.Port{{Name: "output", Type: "any"}}}
	self := newSelfHandler().
		add("a1", genSig, timedSenderContract(10*time.Millisecond, `"a-t1"`)).
		add("b", genSig, timedSenderContract(30*time.Millisecond, `"b-t2"`)).
		add("a2", genSig, timedSenderContract(60*time.Millisecond, `"a-t3"`)).
		add("sink", graph.Signature{
			Inputs:  []graph.Port{{Name: "input", Type: "any"}},
			Outputs: []graph.Port{{Name: "output", Type: "any"}},
		}, identityContract())

	rt := buildRuntime(t, def, self)
	out, status, err := rt.Exec(context.Background(), "fan-in-demo", nil, operation.Inherent{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if status != transaction.Finished {
		t.Fatalf("status = %v, want Finished", status)
	}

	var values []string
	for _, p := range out {
		if p.IsDone() {
			continue
		}
		values = append(values, string(p.Payload().Bytes()))
	}
	want := []string{`"a-t1"`, `"b-t2"`, `"a-t3"`}
	if len(values) != len(want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values = %v, want %v", values, want)
		}
	}
}

// Scenario 6: panicking operation (spec §8).
func TestScenarioPanickingOperation(t *testing.T) {
	t.Parallel()

	def := graph.SchematicDef{
		Name: "panic-demo",
		Nodes: []graph.NodeDef{
			{ID: "p", Ref: graph.Reference{Namespace: "self", Operation: "boom"}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: graph.InputNode, Port: "in"}, To: graph.Endpoint{Node: "p", Port: "input"}},
			{From: graph.Endpoint{Node: "p", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
	self := newSelfHandler().add("boom", graph.Signature{
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	}, panicOnFirstContract())

	rt := buildRuntime(t, def, self)
	input := []packet.Packet{packet.Data("in", []byte(`"go"`)), packet.Done("in")}

	done := make(chan struct{})
	var out []packet.Packet
	var status transaction.Status
	go func() {
		defer close(done)
		out, status, _ = rt.Exec(context.Background(), "panic-demo", input, operation.Inherent{})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Exec deadlocked after a node panic")
	}

	if status != transaction.Aborted {
		t.Fatalf("status = %v, want Aborted", status)
	}
	if len(out) != 1 || !out[0].IsError() {
		t.Fatalf("output = %+v, want exactly one error packet", out)
	}
}

// Scenario 7: output timeout (spec §8).
func TestScenarioOutputTimeout(t *testing.T) {
	t.Parallel()

	def := graph.SchematicDef{
		Name: "timeout-demo",
		Nodes: []graph.NodeDef{
			{ID: "slow", Ref: graph.Reference{Namespace: "self", Operation: "slow"}},
		},
		Connections: []graph.ConnectionDef{
			{From: graph.Endpoint{Node: graph.InputNode, Port: "in"}, To: graph.Endpoint{Node: "slow", Port: "input"}},
			{From: graph.Endpoint{Node: "slow", Port: "output"}, To: graph.Endpoint{Node: graph.OutputNode, Port: "out"}},
		},
	}
	self := newSelfHandler().add("slow", graph.Signature{
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	}, slowThenSleepContract(200*time.Millisecond))

	rt := buildRuntime(t, def, self).WithOutputTimeout(30 * time.Millisecond)
	input := []packet.Packet{packet.Data("in", []byte(`"go"`)), packet.Done("in")}

	out, status, _ := rt.Exec(context.Background(), "timeout-demo", input, operation.Inherent{})
	if status != transaction.Aborted {
		t.Fatalf("status = %v, want Aborted", status)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want [data, fatal-error]", out)
	}
	if out[0].IsError() || out[0].IsFatal() {
		t.Fatalf("out[0] = %+v, want the first data packet", out[0])
	}
	if !out[1].IsError() {
		t.Fatalf("out[1] = %+v, want the timeout error packet", out[1])
	}
}
