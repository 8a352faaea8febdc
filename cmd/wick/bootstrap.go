package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wickrt/wick/components/core"
	"github.com/wickrt/wick/components/keyvalue"
	"github.com/wickrt/wick/components/sqlstore"
	"github.com/wickrt/wick/config"
	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/registry"
	"github.com/wickrt/wick/wicklog"
)

// bundle is everything loadManifests assembles from a directory of
// manifest files: the component/application documents, a populated
// registry, and the compiled graph every schematic (including every
// Composite operation's embedded flow) was built from.
type bundle struct {
	Registry *registry.Registry
	Graph    *graph.Graph
	Apps     []*config.ApplicationManifest
}

// loadManifests reads every *.yaml/*.yml file under dir, decodes it as a
// manifest document (spec §6), registers each component's name as an alias
// of the "self" namespace, registers keyvalue/sqlstore handlers for every
// application's redis/postgres resources, and compiles every Composite
// operation's embedded flow into one graph.Graph. Applications contribute
// no schematics to the graph.
func loadManifests(ctx context.Context, dir string, log wicklog.Logger) (*bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wick: read manifest dir %q: %w", dir, err)
	}

	reg := registry.New()
	reg.Register("core", core.NewHandler(log))

	var (
		defs []graph.SchematicDef
		apps []*config.ApplicationManifest
	)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !hasYAMLExt(name) {
			continue
		}
		raw, err := os.ReadFile(dir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("wick: read %q: %w", name, err)
		}
		doc, err := (config.YAMLSource{}).Load(raw)
		if err != nil {
			return nil, fmt.Errorf("wick: decode %q: %w", name, err)
		}

		switch doc.Kind {
		case config.KindComponent:
			schematics, err := doc.Component.Schematics()
			if err != nil {
				return nil, fmt.Errorf("wick: lower %q: %w", name, err)
			}
			defs = append(defs, schematics...)
			registerNamedOperations(reg, doc.Name)

		case config.KindApplication:
			apps = append(apps, doc.Application)
			for _, r := range doc.Application.Resources {
				switch r.Kind {
				case "redis":
					addr, _ := r.Config["addr"].(string)
					client := redis.NewClient(&redis.Options{Addr: addr})
					reg.Register("keyvalue", keyvalue.NewHandler(client, log))
				case "postgres":
					dsn, _ := r.Config["dsn"].(string)
					pool, err := pgxpool.New(ctx, dsn)
					if err != nil {
						return nil, fmt.Errorf("wick: connect postgres resource %q: %w", r.Name, err)
					}
					reg.Register("sqlstore", sqlstore.NewHandler(pool, log))
				}
			}
		}
	}

	g, err := graph.FromDef(defs, reg)
	if err != nil {
		return nil, fmt.Errorf("wick: build graph: %w", err)
	}
	return &bundle{Registry: reg, Graph: g, Apps: apps}, nil
}

// registerNamedOperations marks a component manifest's own name as an
// alias for the "self" namespace (registry.RegisterSelfAlias), so a
// composite operation's embedded flow can reference its sibling operations
// by the component's own name, per registry's Open Question 1 convention.
func registerNamedOperations(reg *registry.Registry, componentName string) {
	if componentName != "" {
		reg.RegisterSelfAlias(componentName)
	}
}

func hasYAMLExt(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
