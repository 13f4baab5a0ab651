//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Layout directions and image formats.
const (
	RankDirLR = "LR"
	RankDirTB = "TB"

	ImageFormatPNG = "png"
	ImageFormatSVG = "svg"
)

type nodeStyle struct {
	shape, fill, border string
}

var (
	nodeStyles = map[NodeType]nodeStyle{
		NodeTypeLLM:    {"box", "#e3f2fd", "#2196f3"},
		NodeTypeTool:   {"box", "#fff3e0", "#ff9800"},
		NodeTypeRouter: {"diamond", "#eeeeee", "#757575"},
	}
	functionStyle = nodeStyle{"box", "#f3e5f5", "#9c27b0"}
	startStyle    = nodeStyle{"oval", "#e1f5e1", "#4caf50"}
	endStyle      = nodeStyle{"oval", "#ffe1e1", "#f44336"}
)

const (
	colorInterrupt   = "#f44336"
	colorCursor      = "#ffeb3b"
	colorConditional = "#999999"
	colorDestination = "#aaaaaa"
)

// VizOptions configures DOT and Mermaid export.
type VizOptions struct {
	RankDir             string
	IncludeDestinations bool
	IncludeStartEnd     bool
	GraphLabel          string
	// Cursor, when set, highlights where a thread currently is.
	Cursor *Cursor
}

// VizOption mutates VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets the layout direction. Other values than LR and TB are
// ignored.
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithIncludeDestinations toggles Command.GoTo targets as dotted edges.
func WithIncludeDestinations(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeDestinations = include }
}

// WithIncludeStartEnd toggles the virtual start and end nodes.
func WithIncludeStartEnd(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeStartEnd = include }
}

// WithGraphLabel titles the graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

// WithCursor highlights the node a thread's cursor points at. A terminated
// cursor highlights the end node.
func WithCursor(c Cursor) VizOption {
	return func(o *VizOptions) { o.Cursor = &c }
}

func vizOptions(opts []VizOption) *VizOptions {
	o := &VizOptions{RankDir: RankDirLR, IncludeDestinations: true, IncludeStartEnd: true}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// highlighted returns the node the cursor option points at, if any.
func (o *VizOptions) highlighted() string {
	switch {
	case o.Cursor == nil:
		return ""
	case o.Cursor.IsTerminated():
		return End
	}
	return o.Cursor.Node
}

type edgeKind int

const (
	edgeStatic edgeKind = iota
	edgeConditional
	edgeDestination
)

type vizEdge struct {
	from, to, label string
	kind            edgeKind
}

// vizEdges lists edges grouped by source in node declaration order.
func (g *Graph) vizEdges(o *VizOptions) []vizEdge {
	var out []vizEdge
	keep := func(to string) bool { return o.IncludeStartEnd || to != End }
	if o.IncludeStartEnd && g.entryPoint != "" {
		out = append(out, vizEdge{from: Start, to: g.entryPoint})
	}
	for _, id := range g.order {
		if e, ok := g.edges[id]; ok && keep(e.To) {
			out = append(out, vizEdge{from: id, to: e.To})
		}
		if ce, ok := g.conditionalEdges[id]; ok {
			for _, outcome := range sortedKeys(ce.PathMap) {
				if to := ce.PathMap[outcome]; keep(to) {
					out = append(out, vizEdge{from: id, to: to, label: outcome, kind: edgeConditional})
				}
			}
		}
		if o.IncludeDestinations {
			n := g.nodes[id]
			for _, to := range sortedKeys(n.destinations) {
				if keep(to) {
					out = append(out, vizEdge{from: id, to: to, label: n.destinations[to], kind: edgeDestination})
				}
			}
		}
	}
	return out
}

// dotNode renders one DOT node statement.
func dotNode(id, label string, s nodeStyle, extra ...string) string {
	attrs := append([]string{
		fmt.Sprintf("label=%q", dotEscape(label)),
		"shape=" + s.shape,
		"style=filled",
		fmt.Sprintf("fillcolor=%q", s.fill),
		fmt.Sprintf("color=%q", s.border),
	}, extra...)
	return fmt.Sprintf("  %q [%s];\n", dotEscape(id), strings.Join(attrs, ", "))
}

// DOT renders the graph for Graphviz. Interrupt-before nodes get a red
// double border; the highlighted cursor node a yellow fill.
func (g *Graph) DOT(opts ...VizOption) string {
	o := vizOptions(opts)
	cursor := o.highlighted()

	var b strings.Builder
	fmt.Fprintf(&b, "digraph G {\n  rankdir=%s;\n", o.RankDir)
	b.WriteString("  node [fontname=\"Helvetica\"];\n  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=%q;\n  labelloc=t;\n", dotEscape(o.GraphLabel))
	}
	if o.IncludeStartEnd {
		b.WriteString(dotNode(Start, "start", startStyle))
		end := endStyle
		if cursor == End {
			end.fill = colorCursor
		}
		b.WriteString(dotNode(End, "finish", end))
	}
	for _, id := range g.order {
		n := g.nodes[id]
		s, ok := nodeStyles[n.Type]
		if !ok {
			s = functionStyle
		}
		var extra []string
		switch {
		case g.interruptBefore[id]:
			s.border = colorInterrupt
			extra = append(extra, "peripheries=2")
		case !o.IncludeStartEnd && id == g.entryPoint:
			extra = append(extra, "peripheries=2")
		}
		if id == cursor {
			s.fill = colorCursor
		}
		b.WriteString(dotNode(id, nodeLabel(n), s, extra...))
	}
	for _, e := range g.vizEdges(o) {
		var attrs []string
		switch e.kind {
		case edgeConditional:
			attrs = []string{"style=dashed", fmt.Sprintf("color=%q", colorConditional)}
		case edgeDestination:
			attrs = []string{"style=dotted", fmt.Sprintf("color=%q", colorDestination), "constraint=false"}
		}
		if e.label != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", dotEscape(e.label)))
		}
		fmt.Fprintf(&b, "  %q -> %q", dotEscape(e.from), dotEscape(e.to))
		if len(attrs) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(attrs, ", "))
		}
		b.WriteString(";\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid renders the graph as a Mermaid flowchart. Nodes get positional
// ids n0, n1, ... so arbitrary node names stay valid.
func (g *Graph) Mermaid(opts ...VizOption) string {
	o := vizOptions(opts)
	ids := map[string]string{Start: "start", End: "finish"}
	for i, id := range g.order {
		ids[id] = fmt.Sprintf("n%d", i)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", o.RankDir)
	if o.IncludeStartEnd {
		b.WriteString("  start((start))\n  finish((finish))\n")
	}
	for _, id := range g.order {
		n := g.nodes[id]
		open, closing := "[", "]"
		if n.Type == NodeTypeRouter {
			open, closing = "{", "}"
		}
		fmt.Fprintf(&b, "  %s%s\"%s\"%s\n", ids[id], open, mermaidEscape(nodeLabel(n)), closing)
	}
	for _, e := range g.vizEdges(o) {
		switch e.kind {
		case edgeConditional:
			fmt.Fprintf(&b, "  %s -.->|%s| %s\n", ids[e.from], mermaidEscape(e.label), ids[e.to])
		case edgeDestination:
			fmt.Fprintf(&b, "  %s -.-> %s\n", ids[e.from], ids[e.to])
		default:
			fmt.Fprintf(&b, "  %s --> %s\n", ids[e.from], ids[e.to])
		}
	}
	for _, id := range g.InterruptBefore() {
		fmt.Fprintf(&b, "  style %s stroke:%s,stroke-width:3px\n", ids[id], colorInterrupt)
	}
	if c := o.highlighted(); c != "" && ids[c] != "" {
		fmt.Fprintf(&b, "  style %s fill:%s\n", ids[c], colorCursor)
	}
	return b.String()
}

// WriteDOT writes DOT output to w.
func (g *Graph) WriteDOT(w io.Writer, opts ...VizOption) error {
	_, err := io.WriteString(w, g.DOT(opts...))
	return err
}

// RenderImage pipes the DOT output through Graphviz `dot` into outputPath.
func (g *Graph) RenderImage(ctx context.Context, format, outputPath string, opts ...VizOption) error {
	if format == "" {
		format = ImageFormatPNG
	}
	bin, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graphviz dot not found: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin, "-T"+format, "-o", outputPath)
	cmd.Stdin = bytes.NewBufferString(g.DOT(opts...))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("render %s: %w: %s", format, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func nodeLabel(n *Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// dotEscape prepares s for %q inside DOT. Go quoting already escapes quotes
// and backslashes; newlines become DOT line breaks.
func dotEscape(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func mermaidEscape(s string) string {
	return strings.NewReplacer("\"", "#quot;", "|", "#124;", "\n", " ").Replace(s)
}
