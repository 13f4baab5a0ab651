//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides a graph-based workflow execution engine.
//
// A StateGraph declares nodes, static and conditional edges, an entry node and
// optional interrupt-before markers. Compile validates and freezes it into a
// Graph, which an Executor drives one thread at a time, persisting a
// checkpoint after every node through a CheckpointSaver.
package graph

import (
	"context"
	"sort"
)

// Special node identifiers for graph routing.
const (
	// Start is a virtual source node. AddEdge(Start, n) sets n as the entry.
	Start = "__start__"
	// End represents the virtual end node for routing.
	End = "__end__"
)

// NodeFunc is a function that can be executed by a node.
// It returns a State with the fields to merge, a *Command, or nil.
type NodeFunc func(ctx context.Context, state State) (any, error)

// ConditionalFunc is a function that determines the outcome of a conditional
// edge based on state. It should be a pure function of the state.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// NodeType represents the type of a node.
type NodeType string

// Node types.
const (
	NodeTypeFunction NodeType = "function"
	NodeTypeLLM      NodeType = "llm"
	NodeTypeTool     NodeType = "tool"
	NodeTypeRouter   NodeType = "router"
)

// Node represents a node in the graph.
type Node struct {
	ID          string
	Name        string
	Description string
	Function    NodeFunc
	Type        NodeType

	hooks *NodeHooks
	// destinations declares targets reachable through Command.GoTo.
	// Keys are target node IDs; values are optional labels.
	destinations map[string]string
}

// Destinations returns the declared Command.GoTo targets.
func (n *Node) Destinations() map[string]string {
	out := make(map[string]string, len(n.destinations))
	for k, v := range n.destinations {
		out[k] = v
	}
	return out
}

// Edge represents a fixed edge in the graph.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge represents a conditional edge with routing logic.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string // Maps condition result to target node.
}

// Command combines a state update with explicit routing. GoTo overrides the
// node's outgoing edges for this step.
type Command struct {
	Update State
	GoTo   string
}

// Graph is the compiled, immutable runtime structure created by
// StateGraph.Compile. It holds no per-run data and is safe to share between
// executors and goroutines.
type Graph struct {
	schema           *StateSchema
	nodes            map[string]*Node
	order            []string
	edges            map[string]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
	interruptBefore  map[string]bool
}

func newGraph(schema *StateSchema) *Graph {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
		interruptBefore:  make(map[string]bool),
	}
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Nodes returns node IDs in declaration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Edge returns the static edge leaving a node.
func (g *Graph) Edge(nodeID string) (*Edge, bool) {
	edge, exists := g.edges[nodeID]
	return edge, exists
}

// Edges returns all static edges ordered by source declaration.
func (g *Graph) Edges() []*Edge {
	var out []*Edge
	for _, id := range g.order {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ConditionalEdge returns the conditional edge from a node.
func (g *Graph) ConditionalEdge(nodeID string) (*ConditionalEdge, bool) {
	edge, exists := g.conditionalEdges[nodeID]
	return edge, exists
}

// EntryPoint returns the entry point node ID.
func (g *Graph) EntryPoint() string {
	return g.entryPoint
}

// Schema returns the state schema.
func (g *Graph) Schema() *StateSchema {
	return g.schema
}

// InterruptBefore returns the interrupt-before node IDs in sorted order.
func (g *Graph) InterruptBefore() []string {
	out := make([]string, 0, len(g.interruptBefore))
	for id := range g.interruptBefore {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsInterruptBefore reports whether execution halts before node id.
func (g *Graph) IsInterruptBefore(id string) bool {
	return g.interruptBefore[id]
}

// successors lists every node a node may route to, including End.
func (g *Graph) successors(id string) []string {
	var out []string
	if e, ok := g.edges[id]; ok {
		out = append(out, e.To)
	}
	if ce, ok := g.conditionalEdges[id]; ok {
		targets := make([]string, 0, len(ce.PathMap))
		for _, to := range ce.PathMap {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		out = append(out, targets...)
	}
	if n, ok := g.nodes[id]; ok {
		dests := make([]string, 0, len(n.destinations))
		for to := range n.destinations {
			dests = append(dests, to)
		}
		sort.Strings(dests)
		out = append(out, dests...)
	}
	return out
}

func (g *Graph) clone() *Graph {
	c := newGraph(g.schema)
	for id, n := range g.nodes {
		cp := *n
		cp.destinations = n.Destinations()
		c.nodes[id] = &cp
	}
	c.order = append([]string(nil), g.order...)
	for id, e := range g.edges {
		cp := *e
		c.edges[id] = &cp
	}
	for id, ce := range g.conditionalEdges {
		cp := *ce
		cp.PathMap = make(map[string]string, len(ce.PathMap))
		for k, v := range ce.PathMap {
			cp.PathMap[k] = v
		}
		c.conditionalEdges[id] = &cp
	}
	c.entryPoint = g.entryPoint
	for id := range g.interruptBefore {
		c.interruptBefore[id] = true
	}
	return c
}
