package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wickrt/wick/graph"
)

var (
	boundaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	nodeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	refStyle      = lipgloss.NewStyle().Faint(true)
)

// renderDiagram draws an ASCII tree of a compiled schematic starting at
// <input>, one line per node reached by following Outgoing connections.
func renderDiagram(s *graph.Schematic) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s\n", boundaryStyle.Render(s.Name)))

	visited := make(map[int]bool)
	drawNode(s, s.InputNodeIndex(), "", true, visited, &sb)
	return sb.String()
}

func drawNode(s *graph.Schematic, idx int, prefix string, isLast bool, visited map[int]bool, sb *strings.Builder) {
	connector := "├── "
	nextPrefix := prefix + "│   "
	if isLast {
		connector = "└── "
		nextPrefix = prefix + "    "
	}

	label := nodeLabel(s, idx)
	if visited[idx] {
		sb.WriteString(fmt.Sprintf("%s%s%s (cycle)\n", prefix, connector, label))
		return
	}
	visited[idx] = true
	sb.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, label))

	children := outgoingTargets(s, idx)
	for i, childIdx := range children {
		drawNode(s, childIdx, nextPrefix, i == len(children)-1, visited, sb)
	}
}

func nodeLabel(s *graph.Schematic, idx int) string {
	n := s.Nodes[idx]
	switch n.ID {
	case graph.InputNode, graph.OutputNode:
		return boundaryStyle.Render(n.ID)
	default:
		return nodeStyle.Render(n.ID) + " " + refStyle.Render(n.Ref.String())
	}
}

// outgoingTargets returns the distinct node indices idx connects to,
// sorted for stable output.
func outgoingTargets(s *graph.Schematic, idx int) []int {
	seen := make(map[int]bool)
	var targets []int
	for _, c := range s.Outgoing(idx) {
		if seen[c.ToNode] {
			continue
		}
		seen[c.ToNode] = true
		targets = append(targets, c.ToNode)
	}
	sort.Slice(targets, func(i, j int) bool { return s.Nodes[targets[i]].ID < s.Nodes[targets[j]].ID })
	return targets
}
