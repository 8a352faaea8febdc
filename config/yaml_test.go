package config

import (
	"os"
	"testing"

	"github.com/wickrt/wick/graph"
)

func TestYAMLSourceDecodesComponentManifest(t *testing.T) {
	t.Parallel()

	raw := []byte(`
kind: component
name: demo
component:
  operations:
    - name: double
      inputs:
        - name: input
          type: any
      outputs:
        - name: output
          type: any
      implementation:
        kind: composite
        composite:
          nodes:
            - id: mul
              operation: core::pluck
              config:
                path: [value]
          connections:
            - from: "<input>.input"
              to: "mul.input"
            - from: "mul.output"
              to: "<output>.output"
`)

	doc, err := YAMLSource{}.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Kind != KindComponent {
		t.Fatalf("kind = %q, want component", doc.Kind)
	}
	if doc.Component == nil || len(doc.Component.Operations) != 1 {
		t.Fatalf("component = %+v", doc.Component)
	}
	op := doc.Component.Operations[0]
	if op.Name != "double" || op.Implementation.Kind != ImplComposite {
		t.Fatalf("op = %+v", op)
	}

	defs, err := doc.Component.Schematics()
	if err != nil {
		t.Fatalf("Schematics: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("defs = %d, want 1", len(defs))
	}
	if defs[0].Name != "double" || len(defs[0].Nodes) != 1 || len(defs[0].Connections) != 2 {
		t.Fatalf("def = %+v", defs[0])
	}
	if defs[0].Nodes[0].Ref != (graph.Reference{Namespace: "core", Operation: "pluck"}) {
		t.Fatalf("ref = %+v", defs[0].Nodes[0].Ref)
	}
}

func TestYAMLSourceSubstitutesEnvVars(t *testing.T) {
	t.Setenv("WICK_TEST_DSN", "postgres://example")

	raw := []byte(`
kind: application
name: demo-app
application:
  resources:
    - name: db
      kind: postgres
      config:
        dsn: "${WICK_TEST_DSN}"
  triggers:
    - kind: cli
      reference: demo::run
`)
	doc, err := YAMLSource{}.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := doc.Application.Resources[0].Config["dsn"]
	if got != "postgres://example" {
		t.Fatalf("dsn = %v, want substituted value", got)
	}
}

func TestYAMLSourceRejectsMismatchedKind(t *testing.T) {
	t.Parallel()

	raw := []byte(`
kind: application
name: demo
component:
  operations: []
`)
	if _, err := (YAMLSource{}).Load(raw); err == nil {
		t.Fatalf("expected an error for a kind/body mismatch")
	}
}

func TestSqlImplementationDecodes(t *testing.T) {
	t.Parallel()

	raw := []byte(`
kind: component
name: demo
component:
  operations:
    - name: find_user
      implementation:
        kind: sql
        sql:
          statement: "SELECT id, name FROM users WHERE id = $1"
`)
	doc, err := YAMLSource{}.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	impl := doc.Component.Operations[0].Implementation
	if impl.Kind != ImplSql || impl.Sql == nil {
		t.Fatalf("implementation = %+v", impl)
	}
	if impl.Sql.Statement != "SELECT id, name FROM users WHERE id = $1" {
		t.Fatalf("statement = %q", impl.Sql.Statement)
	}
}

func TestAssetPolicyFromEnv(t *testing.T) {
	os.Unsetenv("WICK_ALLOW_LATEST")
	os.Unsetenv("WICK_ALLOWED_INSECURE")
	if p := AssetPolicyFromEnv(); p.AllowLatest || p.AllowInsecure {
		t.Fatalf("expected both false by default, got %+v", p)
	}

	t.Setenv("WICK_ALLOW_LATEST", "1")
	t.Setenv("WICK_ALLOWED_INSECURE", "1")
	if p := AssetPolicyFromEnv(); !p.AllowLatest || !p.AllowInsecure {
		t.Fatalf("expected both true once set, got %+v", p)
	}
}
