// Package graph models the immutable dataflow graph of spec §3: schematics
// built of nodes bound to operations, connected by named typed ports. A
// Graph is built once, by FromDef, and is never mutated afterwards; the
// transaction package owns the arena for the lifetime of one invocation
// (spec §9: "represent the immutable graph as a single arena holding nodes
// and ports, referenced everywhere by index").
package graph

// Boundary node ids, representing a schematic's own input/output ports
// (spec §3).
const (
	InputNode  = "<input>"
	OutputNode = "<output>"
)

// Direction discriminates a Port's role on a node.
type Direction uint8

const (
	In Direction = iota
	Out
)

// Port is a named, directional, typed input or output of a node (spec §3).
// Type is a free-form type name; the core interpreter does not itself
// enforce a type system beyond equality comparison during validation —
// richer type checking is a config/codec collaborator concern.
type Port struct {
	Name string
	Type string
}

// Reference identifies the operation a node is bound to: a namespace (e.g.
// "core" or "self") and an operation name within it (spec §3).
type Reference struct {
	Namespace string
	Operation string
}

func (r Reference) String() string { return r.Namespace + "::" + r.Operation }

// NodeDef is the definition-time shape of a node, as it appears in a
// schematic before validation resolves its operation signature.
type NodeDef struct {
	ID     string
	Ref    Reference
	Config map[string]any
	// Inputs/Outputs are the node's declared ports. For non-dynamic
	// operations these are informational (the resolved signature is
	// authoritative); for dynamic operations (spec §4.8's `merge`) they are
	// populated by DecorateCoreNodes from Config.
	Inputs  []Port
	Outputs []Port
}

// Endpoint names one port of one node, in either direction.
type Endpoint struct {
	Node string
	Port string
}

// ConnectionDef is a `(from: (node_id, output_port), to: (node_id,
// input_port))` pair (spec §3).
type ConnectionDef struct {
	From Endpoint
	To   Endpoint
}

// SchematicDef is the definition-time shape of one schematic.
type SchematicDef struct {
	Name        string
	Nodes       []NodeDef
	Connections []ConnectionDef
	// AllowCycles tolerates cycles among non-boundary nodes (spec §3:
	// "user nodes may cycle only if the runtime is instructed to tolerate
	// it (default: reject)").
	AllowCycles bool
}

// Signature is an operation's declared port/config shape, as resolved from
// a component registry during validation (spec §4.2, §4.9).
type Signature struct {
	Inputs  []Port
	Outputs []Port
	// Dynamic operations (spec §4.8's `merge`) declare their actual ports
	// via node configuration rather than a fixed signature; validation
	// skips the SignatureMismatch check for them once DecorateCoreNodes has
	// populated the node's ports from config.
	Dynamic bool
	// Reentrant operations tolerate overlapping invocations (spec §4.4,
	// §9).
	Reentrant bool
	// ConfigSchema is an optional JSON Schema (as a decoded document) the
	// node's Config must validate against; nil means no config validation.
	ConfigSchema map[string]any
}

// OperationResolver resolves a (namespace, operation) reference to its
// declared signature. The component registry implements this so that
// graph validation can run independently of any particular registry
// implementation.
type OperationResolver interface {
	Resolve(namespace, operation string) (Signature, bool)
}

// Node is one vertex of a validated Graph: a resolved NodeDef with a stable
// arena index.
type Node struct {
	Index   int
	ID      string
	Ref     Reference
	Config  map[string]any
	Inputs  []Port
	Outputs []Port
	Sig     Signature
}

// Connection is one validated edge of a Graph, with arena indices resolved
// for both endpoints.
type Connection struct {
	FromNode, ToNode   int
	FromPort, ToPort   string
}

// Schematic is one validated, immutable dataflow graph: an arena of Nodes
// plus the Connections between them. Node 0 is always <input>, and node 1
// is always <output> (spec §3).
type Schematic struct {
	Name        string
	Nodes       []Node
	Connections []Connection
	AllowCycles bool

	byID         map[string]int
	outgoingFrom map[int][]int // node index -> connection indices
	incomingTo   map[int][]int
}

// NodeByID looks up a node's arena index by its definition id.
func (s *Schematic) NodeByID(id string) (int, bool) {
	idx, ok := s.byID[id]
	return idx, ok
}

// InputNodeIndex returns the arena index of the <input> sentinel.
func (s *Schematic) InputNodeIndex() int { idx, _ := s.byID[InputNode]; return idx }

// OutputNodeIndex returns the arena index of the <output> sentinel.
func (s *Schematic) OutputNodeIndex() int { idx, _ := s.byID[OutputNode]; return idx }

// Outgoing returns every connection whose From endpoint is node.
func (s *Schematic) Outgoing(node int) []Connection {
	idxs := s.outgoingFrom[node]
	out := make([]Connection, len(idxs))
	for i, ci := range idxs {
		out[i] = s.Connections[ci]
	}
	return out
}

// Incoming returns every connection whose To endpoint is node.
func (s *Schematic) Incoming(node int) []Connection {
	idxs := s.incomingTo[node]
	out := make([]Connection, len(idxs))
	for i, ci := range idxs {
		out[i] = s.Connections[ci]
	}
	return out
}

// OutgoingOnPort returns every connection leaving node on the named output
// port.
func (s *Schematic) OutgoingOnPort(node int, port string) []Connection {
	var out []Connection
	for _, c := range s.Outgoing(node) {
		if c.FromPort == port {
			out = append(out, c)
		}
	}
	return out
}

// IncomingOnPort returns every connection arriving at node on the named
// input port.
func (s *Schematic) IncomingOnPort(node int, port string) []Connection {
	var in []Connection
	for _, c := range s.Incoming(node) {
		if c.ToPort == port {
			in = append(in, c)
		}
	}
	return in
}

// Graph is a named bundle of validated Schematics (spec §3/§6: "a
// configuration bundle" may define multiple schematics).
type Graph struct {
	Schematics map[string]*Schematic
}

// Schematic looks up a compiled schematic by name.
func (g *Graph) Schematic(name string) (*Schematic, bool) {
	s, ok := g.Schematics[name]
	return s, ok
}
