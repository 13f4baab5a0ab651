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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, state State) (any, error) { return nil, nil }

func always(outcome string) ConditionalFunc {
	return func(context.Context, State) (string, error) { return outcome, nil }
}

func TestCompile_Valid(t *testing.T) {
	sg := NewStateGraph(nil).
		AddNode("a", noop, WithName("A"), WithNodeType(NodeTypeLLM)).
		AddNode("b", noop).
		AddNode("c", noop).
		AddEdge(Start, "a").
		AddConditionalEdges("a", always("go"), map[string]string{"go": "b", "stop": End}).
		AddEdge("b", "c").
		SetFinishPoint("c")

	g, err := sg.Compile(WithInterruptBefore("c"))
	require.NoError(t, err)
	assert.Equal(t, "a", g.EntryPoint())
	assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())
	assert.Equal(t, []string{"c"}, g.InterruptBefore())
	assert.True(t, g.IsInterruptBefore("c"))

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "A", n.Name)
	assert.Equal(t, NodeTypeLLM, n.Type)

	// The compiled graph does not see later builder changes.
	sg.AddNode("d", noop)
	_, ok = g.Node("d")
	assert.False(t, ok)
}

func TestAddNode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		id   string
		fn   NodeFunc
	}{
		{"empty id", "", noop},
		{"start", Start, noop},
		{"end", End, noop},
		{"nil function", "x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStateGraph(nil).
				AddNode("a", noop).
				SetEntryPoint("a").
				AddNode(tt.id, tt.fn).
				Compile()
			assert.Error(t, err)
		})
	}
}

func TestCompile_DuplicateNode(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", noop).
		AddNode("a", noop).
		SetEntryPoint("a").
		Compile()
	var dup *DuplicateNodeError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Node)
	assert.True(t, IsDefinitionError(err))
}

func TestCompile_UnknownNode(t *testing.T) {
	tests := []struct {
		name  string
		build func(sg *StateGraph) *StateGraph
		opts  []CompileOption
		node  string
	}{
		{
			name:  "edge target",
			build: func(sg *StateGraph) *StateGraph { return sg.AddEdge("a", "ghost") },
			node:  "ghost",
		},
		{
			name:  "edge source",
			build: func(sg *StateGraph) *StateGraph { return sg.AddEdge("ghost", "a") },
			node:  "ghost",
		},
		{
			name: "conditional target",
			build: func(sg *StateGraph) *StateGraph {
				return sg.AddConditionalEdges("a", always("x"), map[string]string{"x": "ghost"})
			},
			node: "ghost",
		},
		{
			name:  "interrupt marker",
			build: func(sg *StateGraph) *StateGraph { return sg },
			opts:  []CompileOption{WithInterruptBefore("ghost")},
			node:  "ghost",
		},
		{
			name: "destination",
			build: func(sg *StateGraph) *StateGraph {
				return sg.AddNode("b", noop, WithDestinations(map[string]string{"ghost": ""})).AddEdge("a", "b")
			},
			node: "ghost",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sg := NewStateGraph(nil).AddNode("a", noop).SetEntryPoint("a")
			_, err := tt.build(sg).Compile(tt.opts...)
			var unknown *UnknownNodeError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, tt.node, unknown.Node)
		})
	}
}

func TestCompile_Unreachable(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", noop).
		AddNode("island", noop).
		AddNode("island2", noop).
		AddEdge("island", "island2").
		SetEntryPoint("a").
		Compile()
	var unreachable *UnreachableNodeError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, []string{"island", "island2"}, unreachable.Nodes)
	assert.True(t, strings.Contains(err.Error(), "island"))
}

func TestCompile_ReachableThroughDestinations(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", noop, WithDestinations(map[string]string{"b": "jump"})).
		AddNode("b", noop).
		SetEntryPoint("a").
		Compile()
	assert.NoError(t, err)
}

func TestCompile_EntryPoint(t *testing.T) {
	_, err := NewStateGraph(nil).AddNode("a", noop).Compile()
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	_, err = NewStateGraph(nil).
		AddNode("a", noop).
		AddNode("b", noop).
		SetEntryPoint("a").
		SetEntryPoint("b").
		Compile()
	assert.ErrorIs(t, err, ErrEntryPointAlreadySet)
}

func TestCompile_FanOut(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", noop).
		AddNode("b", noop).
		AddNode("c", noop).
		SetEntryPoint("a").
		AddEdge("a", "b").
		AddEdge("a", "c").
		Compile()
	var fanOut *FanOutError
	require.ErrorAs(t, err, &fanOut)

	_, err = NewStateGraph(nil).
		AddNode("a", noop).
		AddNode("b", noop).
		SetEntryPoint("a").
		AddEdge("a", "b").
		AddConditionalEdges("a", always("x"), map[string]string{"x": End}).
		Compile()
	require.ErrorAs(t, err, &fanOut)
}

func TestCompile_EmptyPathMap(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", noop).
		SetEntryPoint("a").
		AddConditionalEdges("a", always("x"), nil).
		Compile()
	assert.Error(t, err)
}

func TestCompile_SchemaPolicyConflict(t *testing.T) {
	schema := NewStateSchema().
		AddField("f", StateField{Policy: PolicyAppend}).
		AddField("f", StateField{Policy: PolicyOverwrite})
	_, err := NewStateGraph(schema).AddNode("a", noop).SetEntryPoint("a").Compile()
	var conflict *PolicyConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { NewStateGraph(nil).MustCompile() })
}
