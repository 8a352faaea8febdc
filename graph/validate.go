package graph

import (
	"fmt"

	"github.com/wickrt/wick/werrors"
)

// CyclicGraph is reported when a schematic contains a cycle among
// non-boundary nodes and AllowCycles was not set on its definition (spec
// §3's cycle-tolerance invariant). It is not one of the seven kinds spec
// §4.2 enumerates by name, but the invariant itself is explicit in §3, so
// it is reported through the same werrors.ValidationError machinery.
const CyclicGraph werrors.ValidationKind = "CyclicGraph"

// FromDef walks every schematic definition in a configuration bundle and
// builds a validated Graph, or returns the accumulated ValidationErrors
// (spec §4.2). Errors are never returned first-fail: every schematic, every
// node, and every connection is checked so authoring tools can surface every
// problem in a single pass.
func FromDef(defs []SchematicDef, resolver OperationResolver) (*Graph, error) {
	verrs := &werrors.ValidationErrors{}
	g := &Graph{Schematics: make(map[string]*Schematic, len(defs))}

	for _, def := range defs {
		decorated := DecorateCoreNodes(def, resolver)
		sch := buildSchematic(decorated, resolver, verrs)
		if sch != nil {
			g.Schematics[def.Name] = sch
		}
	}

	if err := verrs.OrNil(); err != nil {
		return nil, err
	}
	return g, nil
}

// DecorateCoreNodes lets core operations contribute synthetic ports based
// on their node's configuration (spec §4.2). `merge`'s inputs are declared
// dynamically via an `inputs` list of port names in config; `switch`'s
// outputs are declared dynamically as `out0`..`outN-1` via a `branches`
// count in config (core.Switch). Both become the node's ports before
// signature validation runs.
func DecorateCoreNodes(def SchematicDef, resolver OperationResolver) SchematicDef {
	out := def
	out.Nodes = make([]NodeDef, len(def.Nodes))
	copy(out.Nodes, def.Nodes)

	for i, n := range out.Nodes {
		sig, ok := resolver.Resolve(n.Ref.Namespace, n.Ref.Operation)
		if !ok || !sig.Dynamic {
			continue
		}
		changed := n

		if rawInputs, present := n.Config["inputs"]; present {
			names, _ := rawInputs.([]string)
			if names == nil {
				if raw, ok := rawInputs.([]any); ok {
					for _, v := range raw {
						if s, ok := v.(string); ok {
							names = append(names, s)
						}
					}
				}
			}
			ports := make([]Port, len(names))
			for j, name := range names {
				ports[j] = Port{Name: name, Type: "any"}
			}
			changed.Inputs = ports
		}

		if rawBranches, present := n.Config["branches"]; present {
			if count, ok := branchCount(rawBranches); ok && count > 0 {
				ports := make([]Port, count)
				for j := 0; j < count; j++ {
					ports[j] = Port{Name: fmt.Sprintf("out%d", j), Type: "any"}
				}
				changed.Outputs = ports
			}
		}

		out.Nodes[i] = changed
	}
	return out
}

// branchCount normalizes a `branches` config value to an int: YAML
// manifests decode small integers as int, JSON-sourced config as float64.
func branchCount(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func buildSchematic(def SchematicDef, resolver OperationResolver, verrs *werrors.ValidationErrors) *Schematic {
	sch := &Schematic{
		Name:         def.Name,
		AllowCycles:  def.AllowCycles,
		byID:         make(map[string]int),
		outgoingFrom: make(map[int][]int),
		incomingTo:   make(map[int][]int),
	}

	// Node 0/1 are always the boundary sentinels.
	sch.Nodes = append(sch.Nodes, Node{Index: 0, ID: InputNode})
	sch.byID[InputNode] = 0
	sch.Nodes = append(sch.Nodes, Node{Index: 1, ID: OutputNode})
	sch.byID[OutputNode] = 1

	for _, nd := range def.Nodes {
		if nd.ID == InputNode || nd.ID == OutputNode {
			verrs.Add(werrors.InvalidBoundaryConnection, def.Name, nd.ID, "", "node id collides with a boundary sentinel")
			continue
		}
		if _, dup := sch.byID[nd.ID]; dup {
			verrs.Add(werrors.MissingNode, def.Name, nd.ID, "", "duplicate node id")
			continue
		}

		sig, ok := resolver.Resolve(nd.Ref.Namespace, nd.Ref.Operation)
		if !ok {
			verrs.Add(werrors.UnknownOperation, def.Name, nd.ID, "", nd.Ref.String())
			continue
		}
		if !sig.Dynamic && !signaturesMatch(nd.Inputs, sig.Inputs) {
			verrs.Add(werrors.SignatureMismatch, def.Name, nd.ID, "", "input ports do not match "+nd.Ref.String())
		}
		if !sig.Dynamic && !signaturesMatch(nd.Outputs, sig.Outputs) {
			verrs.Add(werrors.SignatureMismatch, def.Name, nd.ID, "", "output ports do not match "+nd.Ref.String())
		}

		idx := len(sch.Nodes)
		sch.byID[nd.ID] = idx
		sch.Nodes = append(sch.Nodes, Node{
			Index: idx, ID: nd.ID, Ref: nd.Ref, Config: nd.Config,
			Inputs: effectivePorts(nd.Inputs, sig.Inputs, sig.Dynamic),
			Outputs: effectivePorts(nd.Outputs, sig.Outputs, sig.Dynamic),
			Sig:    sig,
		})
	}

	for _, cd := range def.Connections {
		validateConnection(sch, def.Name, cd, verrs)
	}

	checkUnwiredInputs(sch, def.Name, verrs)
	checkUnreachable(sch, def.Name, verrs)
	if !def.AllowCycles {
		checkCycles(sch, def.Name, verrs)
	}

	return sch
}

func effectivePorts(declared, fromSig []Port, dynamic bool) []Port {
	if dynamic {
		return declared
	}
	return fromSig
}

func signaturesMatch(declared, want []Port) bool {
	if len(declared) == 0 {
		// A node may omit its port list and rely entirely on the resolved
		// signature; that is not a mismatch.
		return true
	}
	if len(declared) != len(want) {
		return false
	}
	index := make(map[string]Port, len(want))
	for _, p := range want {
		index[p.Name] = p
	}
	for _, d := range declared {
		p, ok := index[d.Name]
		if !ok {
			return false
		}
		if d.Type != "" && p.Type != "" && d.Type != p.Type {
			return false
		}
	}
	return true
}

func validateConnection(sch *Schematic, schematicName string, cd ConnectionDef, verrs *werrors.ValidationErrors) {
	fromIdx, fromOK := sch.byID[cd.From.Node]
	toIdx, toOK := sch.byID[cd.To.Node]

	if !fromOK {
		verrs.Add(werrors.MissingNode, schematicName, cd.From.Node, cd.From.Port, "connection source node does not exist")
	}
	if !toOK {
		verrs.Add(werrors.MissingNode, schematicName, cd.To.Node, cd.To.Port, "connection destination node does not exist")
	}
	if !fromOK || !toOK {
		return
	}

	invalid := false
	if cd.From.Node == OutputNode {
		verrs.Add(werrors.InvalidBoundaryConnection, schematicName, cd.From.Node, cd.From.Port, "<output> has no outputs")
		invalid = true
	}
	if cd.To.Node == InputNode {
		verrs.Add(werrors.InvalidBoundaryConnection, schematicName, cd.To.Node, cd.To.Port, "<input> has no inputs")
		invalid = true
	}
	if cd.From.Node == InputNode && cd.To.Node == OutputNode {
		verrs.Add(werrors.InvalidBoundaryConnection, schematicName, cd.From.Node, cd.From.Port, "self-loop through <input>/<output> boundary")
		invalid = true
	}
	if invalid {
		return
	}

	if !hasPort(sch.Nodes[fromIdx].Outputs, cd.From.Port) && cd.From.Node != InputNode {
		verrs.Add(werrors.MissingPort, schematicName, cd.From.Node, cd.From.Port, "no such output port")
		invalid = true
	}
	if !hasPort(sch.Nodes[toIdx].Inputs, cd.To.Port) && cd.To.Node != OutputNode {
		verrs.Add(werrors.MissingPort, schematicName, cd.To.Node, cd.To.Port, "no such input port")
		invalid = true
	}
	if invalid {
		return
	}

	ci := len(sch.Connections)
	sch.Connections = append(sch.Connections, Connection{
		FromNode: fromIdx, FromPort: cd.From.Port,
		ToNode: toIdx, ToPort: cd.To.Port,
	})
	sch.outgoingFrom[fromIdx] = append(sch.outgoingFrom[fromIdx], ci)
	sch.incomingTo[toIdx] = append(sch.incomingTo[toIdx], ci)
}

func hasPort(ports []Port, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}

// checkUnwiredInputs enforces "every non-boundary input port has ≥ 1
// incoming connection" (spec §3).
func checkUnwiredInputs(sch *Schematic, schematicName string, verrs *werrors.ValidationErrors) {
	for _, n := range sch.Nodes {
		if n.ID == InputNode || n.ID == OutputNode {
			continue
		}
		for _, p := range n.Inputs {
			if len(sch.IncomingOnPort(n.Index, p.Name)) == 0 {
				verrs.Add(werrors.UnwiredInput, schematicName, n.ID, p.Name, "no incoming connection")
			}
		}
		for _, p := range n.Outputs {
			if len(sch.OutgoingOnPort(n.Index, p.Name)) == 0 {
				verrs.Add(werrors.UnwiredInput, schematicName, n.ID, p.Name, "no outgoing connection")
			}
		}
	}
}

// checkUnreachable flags nodes with no connections in either direction:
// dead weight that can never run nor contribute to output.
func checkUnreachable(sch *Schematic, schematicName string, verrs *werrors.ValidationErrors) {
	for _, n := range sch.Nodes {
		if n.ID == InputNode || n.ID == OutputNode {
			continue
		}
		if len(sch.Incoming(n.Index)) == 0 && len(sch.Outgoing(n.Index)) == 0 {
			verrs.Add(werrors.UnreachableNode, schematicName, n.ID, "", "node has no connections")
		}
	}
}

// checkCycles rejects cycles among non-boundary nodes unless the schematic
// definition opted in via AllowCycles (spec §3).
func checkCycles(sch *Schematic, schematicName string, verrs *werrors.ValidationErrors) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(sch.Nodes))
	var visit func(n int) bool
	visit = func(n int) bool {
		color[n] = gray
		for _, c := range sch.Outgoing(n) {
			if c.ToNode == sch.OutputNodeIndex() {
				continue
			}
			switch color[c.ToNode] {
			case gray:
				return true
			case white:
				if visit(c.ToNode) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, n := range sch.Nodes {
		if n.ID == InputNode || n.ID == OutputNode {
			continue
		}
		if color[n.Index] == white && visit(n.Index) {
			verrs.Add(CyclicGraph, schematicName, n.ID, "", "cycle detected among non-boundary nodes")
			return
		}
	}
}
