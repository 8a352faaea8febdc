package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wickrt/wick/wicklog"
)

const componentManifest = `
kind: component
name: doubler
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
            - id: p
              operation: core::pluck
              config:
                path: [value]
          connections:
            - from: "<input>.input"
              to: "p.input"
            - from: "p.output"
              to: "<output>.output"
`

const applicationManifest = `
kind: application
name: demo-app
application:
  triggers:
    - kind: http
      reference: double
      config:
        path: /invoke/double
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doubler.yaml"), []byte(componentManifest), 0o644); err != nil {
		t.Fatalf("write component manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(applicationManifest), 0o644); err != nil {
		t.Fatalf("write application manifest: %v", err)
	}
	// Non-manifest files in the same directory must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a manifest"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	return dir
}

func TestLoadManifestsBuildsGraphAndApps(t *testing.T) {
	t.Parallel()

	dir := writeFixtures(t)
	b, err := loadManifests(context.Background(), dir, wicklog.NoOp{})
	if err != nil {
		t.Fatalf("loadManifests: %v", err)
	}

	if _, ok := b.Graph.Schematic("double"); !ok {
		t.Fatalf("expected a %q schematic lowered from the component manifest", "double")
	}
	if len(b.Apps) != 1 {
		t.Fatalf("len(Apps) = %d, want 1", len(b.Apps))
	}
	if len(b.Apps[0].Triggers) != 1 || b.Apps[0].Triggers[0].Reference != "double" {
		t.Fatalf("unexpected triggers: %+v", b.Apps[0].Triggers)
	}
}

func TestLoadManifestsRejectsMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := loadManifests(context.Background(), filepath.Join(t.TempDir(), "missing"), wicklog.NoOp{}); err == nil {
		t.Fatal("expected an error for a nonexistent manifest directory")
	}
}
