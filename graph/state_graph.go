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
	"errors"
	"fmt"
	"sort"
)

// StateGraph provides a fluent interface for building graphs.
// Errors are accumulated and reported together by Compile.
type StateGraph struct {
	graph *Graph
	errs  []error
}

// NewStateGraph creates a new graph builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{
		graph: newGraph(schema),
	}
}

// Option is a function that configures a Node.
type Option func(*Node)

// WithName sets the name of the node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// WithNodeType sets the type of the node.
func WithNodeType(nodeType NodeType) Option {
	return func(node *Node) {
		node.Type = nodeType
	}
}

// WithDestinations declares the targets a node may route to with
// Command.GoTo. Declared targets count for reachability and are validated at
// compile time.
func WithDestinations(dests map[string]string) Option {
	return func(node *Node) {
		if node.destinations == nil {
			node.destinations = make(map[string]string, len(dests))
		}
		for k, v := range dests {
			node.destinations[k] = v
		}
	}
}

// WithNodeHooks attaches hooks that run only around this node.
func WithNodeHooks(hooks *NodeHooks) Option {
	return func(node *Node) {
		node.hooks = hooks
	}
}

// AddNode adds a node with the given ID and function.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	if id == "" || id == Start || id == End {
		sg.errs = append(sg.errs, fmt.Errorf("invalid node ID %q", id))
		return sg
	}
	if function == nil {
		sg.errs = append(sg.errs, fmt.Errorf("node %q has no function", id))
		return sg
	}
	if _, exists := sg.graph.nodes[id]; exists {
		sg.errs = append(sg.errs, &DuplicateNodeError{Node: id})
		return sg
	}
	node := &Node{
		ID:       id,
		Name:     id,
		Function: function,
		Type:     NodeTypeFunction,
	}
	for _, opt := range opts {
		opt(node)
	}
	sg.graph.nodes[id] = node
	sg.graph.order = append(sg.graph.order, id)
	return sg
}

// AddEdge adds a fixed edge between two declared nodes. to may be End, and
// from may be Start, which sets to as the entry point.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if from == Start {
		return sg.SetEntryPoint(to)
	}
	if !sg.checkNode(from, "edge source") || !sg.checkTarget(to, "edge target") {
		return sg
	}
	if _, exists := sg.graph.edges[from]; exists {
		sg.errs = append(sg.errs, &FanOutError{Node: from})
		return sg
	}
	sg.graph.edges[from] = &Edge{From: from, To: to}
	return sg
}

// AddConditionalEdges adds a conditional edge. The condition's outcome is
// looked up in pathMap, whose values must be declared nodes or End.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	condition ConditionalFunc,
	pathMap map[string]string,
) *StateGraph {
	if !sg.checkNode(from, "conditional edge source") {
		return sg
	}
	if condition == nil {
		sg.errs = append(sg.errs, fmt.Errorf("conditional edge from %q has no condition", from))
		return sg
	}
	if len(pathMap) == 0 {
		sg.errs = append(sg.errs, fmt.Errorf("conditional edge from %q has an empty path map", from))
		return sg
	}
	for _, to := range sortedValues(pathMap) {
		if !sg.checkTarget(to, fmt.Sprintf("conditional edge from %q", from)) {
			return sg
		}
	}
	if _, exists := sg.graph.conditionalEdges[from]; exists {
		sg.errs = append(sg.errs, &FanOutError{Node: from})
		return sg
	}
	pm := make(map[string]string, len(pathMap))
	for k, v := range pathMap {
		pm[k] = v
	}
	sg.graph.conditionalEdges[from] = &ConditionalEdge{
		From:      from,
		Condition: condition,
		PathMap:   pm,
	}
	return sg
}

// SetEntryPoint sets the entry point of the graph. It must be called once.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	if !sg.checkNode(nodeID, "entry point") {
		return sg
	}
	if sg.graph.entryPoint != "" {
		sg.errs = append(sg.errs, fmt.Errorf("%w: %q", ErrEntryPointAlreadySet, sg.graph.entryPoint))
		return sg
	}
	sg.graph.entryPoint = nodeID
	return sg
}

// SetFinishPoint adds an edge from the node to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	interruptBefore []string
}

// WithInterruptBefore marks nodes the executor halts before.
func WithInterruptBefore(nodes ...string) CompileOption {
	return func(o *compileOptions) {
		o.interruptBefore = append(o.interruptBefore, nodes...)
	}
}

// Compile validates the graph and returns an immutable copy of it. Later
// changes to the builder do not affect the returned Graph.
func (sg *StateGraph) Compile(opts ...CompileOption) (*Graph, error) {
	o := &compileOptions{}
	for _, opt := range opts {
		opt(o)
	}
	errs := append([]error(nil), sg.errs...)
	if err := sg.graph.schema.Err(); err != nil {
		errs = append(errs, err)
	}
	g := sg.graph.clone()
	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	}
	for _, id := range o.interruptBefore {
		if _, ok := g.nodes[id]; !ok {
			errs = append(errs, &UnknownNodeError{Node: id, Ref: "interrupt-before marker"})
			continue
		}
		g.interruptBefore[id] = true
	}
	for _, id := range g.order {
		_, hasStatic := g.edges[id]
		_, hasCond := g.conditionalEdges[id]
		if hasStatic && hasCond {
			errs = append(errs, &FanOutError{Node: id})
		}
		for _, to := range sortedKeys(g.nodes[id].destinations) {
			if _, ok := g.nodes[to]; !ok && to != End {
				errs = append(errs, &UnknownNodeError{Node: to, Ref: fmt.Sprintf("destinations of %q", id)})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if unreachable := g.unreachable(); len(unreachable) > 0 {
		return nil, &UnreachableNodeError{Nodes: unreachable}
	}
	return g, nil
}

// MustCompile compiles the graph or panics.
func (sg *StateGraph) MustCompile(opts ...CompileOption) *Graph {
	g, err := sg.Compile(opts...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) unreachable() []string {
	seen := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(id) {
			if next == End || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	var out []string
	for _, id := range g.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (sg *StateGraph) checkNode(id, ref string) bool {
	if _, ok := sg.graph.nodes[id]; !ok {
		sg.errs = append(sg.errs, &UnknownNodeError{Node: id, Ref: ref})
		return false
	}
	return true
}

func (sg *StateGraph) checkTarget(id, ref string) bool {
	if id == End {
		return true
	}
	return sg.checkNode(id, ref)
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
