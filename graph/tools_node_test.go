//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/tool"
	"github.com/phuocNg964/ProMeet-AI/tool/function"
)

// scriptedModel answers each request with the next turn of a script.
type scriptedModel struct {
	mu       sync.Mutex
	turns    []func(req *model.Request) model.Message
	requests []*model.Request
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i >= len(m.turns) {
		return nil, errors.New("script exhausted")
	}
	return &model.Response{
		Choices: []model.Choice{{Message: m.turns[i](req)}},
	}, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

func toolCall(name, args string) model.Message {
	return model.Message{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{{
			Function: model.FunctionDefinitionParam{Name: name, Arguments: args},
		}},
	}
}

type lookupInput struct {
	Name string `json:"name"`
}

type project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createTaskInput struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

func toolsGraph(t *testing.T, llm model.Model, registry *tool.Registry) *graph.Executor {
	t.Helper()
	tools, err := graph.NewToolsNodeFunc(registry)
	require.NoError(t, err)
	g := graph.NewStateGraph(graph.MessagesStateSchema()).
		AddNode("propose", graph.NewProposeNodeFunc(llm, "You manage projects.", registry),
			graph.WithNodeType(graph.NodeTypeLLM)).
		AddNode("tools", tools, graph.WithNodeType(graph.NodeTypeTool)).
		SetEntryPoint("propose").
		AddToolsConditionalEdges("propose", "tools", graph.End).
		MustCompile()
	exec, _ := newExecutor(t, g)
	return exec
}

func TestToolLoop_LookupThenCreate(t *testing.T) {
	var created []createTaskInput
	registry := tool.MustRegistry(
		function.New("lookupProject", "Find a project by name.", func(ctx context.Context, in lookupInput) (project, error) {
			return project{ID: "p-1", Name: in.Name}, nil
		}),
		function.New("createTask", "Create a task.", func(ctx context.Context, in createTaskInput) (map[string]string, error) {
			created = append(created, in)
			return map[string]string{"task_id": "t-9"}, nil
		}),
	)

	llm := &scriptedModel{turns: []func(*model.Request) model.Message{
		func(req *model.Request) model.Message {
			return toolCall("lookupProject", `{"name":"Apollo"}`)
		},
		func(req *model.Request) model.Message {
			last := req.Messages[len(req.Messages)-1]
			var p project
			if err := json.Unmarshal([]byte(last.Content), &p); err != nil {
				return model.NewAssistantMessage("bad lookup result")
			}
			args, _ := json.Marshal(createTaskInput{ProjectID: p.ID, Title: "Write report"})
			return toolCall("createTask", string(args))
		},
		func(req *model.Request) model.Message {
			return model.NewAssistantMessage("Created task t-9 in Apollo.")
		},
	}}
	exec := toolsGraph(t, llm, registry)

	res, err := exec.Run(context.Background(), "chat-1", graph.State{graph.StateKeyUserInput: "Add a report task to Apollo"})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusTerminated, res.Status)
	assert.Equal(t, "Created task t-9 in Apollo.", res.State[graph.StateKeyLastResponse])
	require.Len(t, created, 1)
	assert.Equal(t, createTaskInput{ProjectID: "p-1", Title: "Write report"}, created[0])

	msgs := graph.Messages(res.State)
	var toolResults []model.Message
	for _, m := range msgs {
		if m.Role == model.RoleTool {
			toolResults = append(toolResults, m)
		}
	}
	require.Len(t, toolResults, 2)
	assert.Equal(t, "lookupProject", toolResults[0].ToolName)
	assert.NotEmpty(t, toolResults[0].ToolID)
	assert.JSONEq(t, `{"id":"p-1","name":"Apollo"}`, toolResults[0].Content)
	assert.JSONEq(t, `{"task_id":"t-9"}`, toolResults[1].Content)

	// user, call, result, call, result, final answer
	require.Len(t, msgs, 6)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[5].Role)
	require.Len(t, llm.requests, 3)
	assert.Equal(t, model.RoleSystem, llm.requests[0].Messages[0].Role)
	assert.Contains(t, llm.requests[0].Tools, "createTask")
}

func TestToolLoop_UnknownToolContinues(t *testing.T) {
	registry := tool.MustRegistry()
	var observed string
	llm := &scriptedModel{turns: []func(*model.Request) model.Message{
		func(req *model.Request) model.Message { return toolCall("ghost", `{}`) },
		func(req *model.Request) model.Message {
			observed = req.Messages[len(req.Messages)-1].Content
			return model.NewAssistantMessage("Sorry, I cannot do that.")
		},
	}}
	exec := toolsGraph(t, llm, registry)

	res, err := exec.Run(context.Background(), "chat-1", graph.State{graph.StateKeyUserInput: "do magic"})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusTerminated, res.Status)
	assert.Equal(t, "unknown capability: ghost", observed)
	assert.Equal(t, "Sorry, I cannot do that.", res.State[graph.StateKeyLastResponse])
}

func TestToolLoop_FailingToolBecomesResult(t *testing.T) {
	registry := tool.MustRegistry(
		function.New("lookupProject", "", func(ctx context.Context, in lookupInput) (project, error) {
			return project{}, errors.New("backend down")
		}),
	)
	var observed string
	llm := &scriptedModel{turns: []func(*model.Request) model.Message{
		func(req *model.Request) model.Message { return toolCall("lookupProject", `{"name":"x"}`) },
		func(req *model.Request) model.Message {
			observed = req.Messages[len(req.Messages)-1].Content
			return model.NewAssistantMessage("The backend is down.")
		},
	}}
	exec := toolsGraph(t, llm, registry)

	_, err := exec.Run(context.Background(), "chat-1", graph.State{graph.StateKeyUserInput: "find x"})
	require.NoError(t, err)
	assert.Contains(t, observed, "backend down")
}

func TestToolLoop_EmptyTurnUsesFallback(t *testing.T) {
	llm := &scriptedModel{turns: []func(*model.Request) model.Message{
		func(req *model.Request) model.Message { return model.Message{Role: model.RoleAssistant} },
	}}
	exec := toolsGraph(t, llm, tool.MustRegistry())

	res, err := exec.Run(context.Background(), "chat-1", graph.State{graph.StateKeyUserInput: "hello"})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusTerminated, res.Status)
	assert.Equal(t, graph.DefaultFallbackMessage, res.State[graph.StateKeyLastResponse])
	assert.Len(t, llm.requests, 1)
}

func TestToolLoop_ModelErrorFaults(t *testing.T) {
	llm := &scriptedModel{}
	exec := toolsGraph(t, llm, tool.MustRegistry())

	res, err := exec.Run(context.Background(), "chat-1", graph.State{graph.StateKeyUserInput: "hello"})
	var fault *graph.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "propose", fault.Node)
	assert.Equal(t, graph.StatusFaulted, res.Status)
}

func TestToolsCondition(t *testing.T) {
	ctx := context.Background()
	route, err := graph.ToolsCondition(ctx, graph.State{})
	require.NoError(t, err)
	assert.Equal(t, graph.RouteEnd, route)

	route, _ = graph.ToolsCondition(ctx, graph.State{
		graph.StateKeyMessages: []model.Message{toolCall("x", "{}")},
	})
	assert.Equal(t, graph.RouteTools, route)

	route, _ = graph.ToolsCondition(ctx, graph.State{
		graph.StateKeyMessages: []model.Message{model.NewAssistantMessage("done")},
	})
	assert.Equal(t, graph.RouteEnd, route)
}

func TestNewToolsNodeFunc_NilRegistry(t *testing.T) {
	_, err := graph.NewToolsNodeFunc(nil)
	assert.Error(t, err)
}
