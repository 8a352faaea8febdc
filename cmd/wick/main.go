package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/kataras/golog"

	"github.com/wickrt/wick/config"
	"github.com/wickrt/wick/interpreter"
	cliTrigger "github.com/wickrt/wick/trigger/cli"
	httpTrigger "github.com/wickrt/wick/trigger/http"
	"github.com/wickrt/wick/wicklog"
)

// interpreterRuntime builds the single Runtime every trigger driver shares,
// over the graph and registry loadManifests already assembled.
func interpreterRuntime(b *bundle, log wicklog.Logger) *interpreter.Runtime {
	return interpreter.New(b.Graph, b.Registry, log)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}

	log := wicklog.NewGologLogger(golog.New(), wicklog.LevelInfo)

	switch args[0] {
	case "diagram":
		return runDiagram(args[1:], log)
	case "invoke":
		return runInvoke(args[1:], log)
	case "serve":
		return runServe(args[1:], log)
	default:
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wick <diagram|invoke|serve> [flags]")
}

// runDiagram renders an ASCII tree of one schematic from a manifest directory.
func runDiagram(args []string, log wicklog.Logger) int {
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	dir := fs.String("manifests", ".", "directory of manifest files")
	schematic := fs.String("schematic", "", "schematic name to draw")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *schematic == "" {
		fmt.Fprintln(os.Stderr, "wick diagram: -schematic is required")
		return 2
	}

	b, err := loadManifests(context.Background(), *dir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	s, ok := b.Graph.Schematic(*schematic)
	if !ok {
		fmt.Fprintf(os.Stderr, "wick diagram: no schematic named %q\n", *schematic)
		return 1
	}
	fmt.Print(renderDiagram(s))
	return 0
}

// runInvoke submits stdin to one schematic via the CLI trigger driver and
// writes the resulting packets to stdout (spec §6's CLI trigger).
func runInvoke(args []string, log wicklog.Logger) int {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	dir := fs.String("manifests", ".", "directory of manifest files")
	schematic := fs.String("schematic", "", "schematic name to invoke")
	port := fs.String("port", "input", "input port to feed stdin into")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *schematic == "" {
		fmt.Fprintln(os.Stderr, "wick invoke: -schematic is required")
		return 2
	}

	b, err := loadManifests(context.Background(), *dir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rt := interpreterRuntime(b, log)
	driver := cliTrigger.New(rt)
	code, err := driver.Run(context.Background(), *schematic, *port, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return code
}

// runServe registers every declared HTTP trigger (spec §6's application
// triggers) as a gin route and blocks serving them.
func runServe(args []string, log wicklog.Logger) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dir := fs.String("manifests", ".", "directory of manifest files")
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	b, err := loadManifests(context.Background(), *dir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rt := interpreterRuntime(b, log)
	driver := httpTrigger.New(rt)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	registered := 0
	for _, app := range b.Apps {
		for _, t := range app.Triggers {
			if t.Kind != config.TriggerHTTP {
				continue
			}
			port, _ := t.Config["port"].(string)
			if port == "" {
				port = "input"
			}
			path, _ := t.Config["path"].(string)
			if path == "" {
				path = "/invoke/" + t.Reference
			}
			driver.Register(r, path, t.Reference, port)
			registered++
		}
	}
	log.Info("serving %d trigger(s) on %s", registered, *addr)

	if err := r.Run(*addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
