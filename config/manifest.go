package config

import "github.com/wickrt/wick/graph"

// DocumentKind discriminates the four manifest document kinds of spec §6.
type DocumentKind string

const (
	KindComponent   DocumentKind = "component"
	KindApplication DocumentKind = "application"
	KindTypes       DocumentKind = "types"
	KindTest        DocumentKind = "test"
)

// Document is one decoded manifest file. Exactly one of Component/
// Application/Types/Test is populated, selected by Kind.
type Document struct {
	Kind DocumentKind `yaml:"kind"`
	Name string       `yaml:"name"`

	Component   *ComponentManifest   `yaml:"component,omitempty"`
	Application *ApplicationManifest `yaml:"application,omitempty"`
	Types       *TypesManifest       `yaml:"types,omitempty"`
	Test        *TestManifest        `yaml:"test,omitempty"`
}

// ComponentManifest declares the operations, types, and dependencies one
// component contributes to a registry (spec §6).
type ComponentManifest struct {
	Operations []OperationDef `yaml:"operations"`
	Types      []TypeDef      `yaml:"types,omitempty"`
	Imports    []ImportDef    `yaml:"imports,omitempty"`
	Requires   []RequireDef   `yaml:"requires,omitempty"`
}

// ImplementationKind enumerates spec §6's operation implementation
// discriminant. Only Composite (a flow expression parsed into a
// graph.SchematicDef) and Sql (components/sqlstore's query/exec pair) are
// backed by a concrete runtime path in this repo; Wasm, HttpClient, and
// GrpcUrl are modeled so manifests naming them decode cleanly, but nothing
// here executes them — wiring a WASM host or outbound HTTP/gRPC client is
// out of this rewrite's scope (spec §1's sandboxed-code-host non-goal).
type ImplementationKind string

const (
	ImplComposite  ImplementationKind = "composite"
	ImplWasm       ImplementationKind = "wasm"
	ImplSql        ImplementationKind = "sql"
	ImplHttpClient ImplementationKind = "http_client"
	ImplGrpcUrl    ImplementationKind = "grpc_url"
)

// Implementation is an operation's implementation discriminant. Exactly one
// of the kind-specific fields is populated, selected by Kind.
type Implementation struct {
	Kind ImplementationKind `yaml:"kind"`

	Composite  *CompositeFlow `yaml:"composite,omitempty"`
	Wasm       *WasmRef       `yaml:"wasm,omitempty"`
	Sql        *SqlStatement  `yaml:"sql,omitempty"`
	HttpClient *HttpClientRef `yaml:"http_client,omitempty"`
	GrpcUrl    *GrpcUrlRef    `yaml:"grpc_url,omitempty"`
}

// CompositeFlow is the embedded flow expression language of spec §6: nodes,
// connections, and port references parsed into a graph.SchematicDef by
// ToSchematicDef.
type CompositeFlow struct {
	Nodes       []FlowNode       `yaml:"nodes"`
	Connections []FlowConnection `yaml:"connections"`
	AllowCycles bool             `yaml:"allow_cycles,omitempty"`
}

// FlowNode is one node of an embedded composite flow. Operation is a
// "namespace::operation" reference, the same textual form Reference.String
// produces.
type FlowNode struct {
	ID        string         `yaml:"id"`
	Operation string         `yaml:"operation"`
	Config    map[string]any `yaml:"config,omitempty"`
}

// FlowConnection is one wire of an embedded composite flow. From/To are
// "node.port" pairs.
type FlowConnection struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// WasmRef names a WASM module implementing an operation. Decoded but not
// executed (see ImplementationKind's doc comment).
type WasmRef struct {
	Ref string `yaml:"ref"`
}

// SqlStatement carries the literal SQL statement a components/sqlstore
// query/exec node binds its per-invocation parameters against.
type SqlStatement struct {
	Statement string `yaml:"statement"`
}

// HttpClientRef names an outbound HTTP endpoint implementing an operation.
// Decoded but not executed.
type HttpClientRef struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method,omitempty"`
}

// GrpcUrlRef names an outbound gRPC endpoint implementing an operation.
// Decoded but not executed.
type GrpcUrlRef struct {
	URL     string `yaml:"url"`
	Service string `yaml:"service"`
}

// OperationDef is one operation a component manifest declares: its ports,
// config schema, and implementation (spec §6).
type OperationDef struct {
	Name           string          `yaml:"name"`
	Inputs         []graph.Port    `yaml:"inputs,omitempty"`
	Outputs        []graph.Port    `yaml:"outputs,omitempty"`
	ConfigSchema   map[string]any  `yaml:"config,omitempty"`
	Implementation Implementation  `yaml:"implementation"`
}

// TypeDef is one named type declaration in a component or types manifest.
// Schema is a decoded JSON Schema document, the same shape
// OperationDef.ConfigSchema carries.
type TypeDef struct {
	Name   string         `yaml:"name"`
	Schema map[string]any `yaml:"schema"`
}

// ImportDef names another component or types manifest this one depends on.
type ImportDef struct {
	Namespace string `yaml:"namespace"`
	From      string `yaml:"from"`
}

// RequireDef names a capability a component manifest expects the embedding
// host to provide (spec §6: "requires").
type RequireDef struct {
	Name string `yaml:"name"`
}

// ApplicationManifest declares the resources, imports, and triggers of a
// running application (spec §6).
type ApplicationManifest struct {
	Resources []ResourceDef `yaml:"resources,omitempty"`
	Imports   []ImportDef   `yaml:"imports,omitempty"`
	Triggers  []TriggerDef  `yaml:"triggers"`
}

// ResourceDef names an external resource (a database pool, a Redis client)
// an application wires into its components at startup.
type ResourceDef struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config,omitempty"`
}

// TriggerKind enumerates the trigger kinds spec §6 scopes in as runtime
// consumers: "cli", "http", "time".
type TriggerKind string

const (
	TriggerCLI  TriggerKind = "cli"
	TriggerHTTP TriggerKind = "http"
	TriggerTime TriggerKind = "time"
)

// TriggerDef is one entrypoint an application manifest wires to a
// schematic. trigger/cli and trigger/http consume these.
type TriggerDef struct {
	Kind      TriggerKind    `yaml:"kind"`
	Reference string         `yaml:"reference"`
	Config    map[string]any `yaml:"config,omitempty"`
}

// TypesManifest is a standalone document of shared type declarations.
type TypesManifest struct {
	Types []TypeDef `yaml:"types"`
}

// TestManifest is a standalone document of schematic test cases.
type TestManifest struct {
	Cases []TestCase `yaml:"cases"`
}

// TestCase is one test-manifest case: a schematic to invoke, the input
// packets to feed it, and the output packets expected back.
type TestCase struct {
	Name       string           `yaml:"name"`
	Schematic  string           `yaml:"schematic"`
	Inputs     []TestPacket     `yaml:"inputs"`
	Expected   []TestPacket     `yaml:"expected"`
}

// TestPacket is one packet literal in a test manifest: a port name plus
// either a JSON-decodable payload or a done/error flag.
type TestPacket struct {
	Port    string `yaml:"port"`
	Payload any    `yaml:"payload,omitempty"`
	Done    bool   `yaml:"done,omitempty"`
	Error   string `yaml:"error,omitempty"`
}
