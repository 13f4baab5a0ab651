//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package projectmanager

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/inmemory"
	"github.com/phuocNg964/ProMeet-AI/knowledge"
	"github.com/phuocNg964/ProMeet-AI/knowledge/document"
	"github.com/phuocNg964/ProMeet-AI/model"
)

// chatModel routes by request kind: router, tool turn or plain answer.
type chatModel struct {
	mu       sync.Mutex
	route    func(query string) string
	toolTurn func(n int, req *model.Request) (model.Message, error)
	requests []*model.Request
	toolRuns int
}

func (m *chatModel) GenerateContent(_ context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	last := req.Messages[len(req.Messages)-1]
	switch {
	case req.StructuredOutput != nil:
		b, _ := json.Marshal(RouterOutput{Decision: m.route(last.Content)})
		return reply(model.NewAssistantMessage(string(b))), nil
	case len(req.Tools) > 0:
		m.mu.Lock()
		m.toolRuns++
		n := m.toolRuns
		m.mu.Unlock()
		msg, err := m.toolTurn(n, req)
		if err != nil {
			return nil, err
		}
		return reply(msg), nil
	default:
		return reply(model.NewAssistantMessage("answer: " + last.Content)), nil
	}
}

func (m *chatModel) Info() model.Info { return model.Info{Name: "chat"} }

func reply(msg model.Message) *model.Response {
	return &model.Response{Choices: []model.Choice{{Message: msg}}}
}

func call(id, name, args string) model.Message {
	msg := model.NewAssistantMessage("")
	msg.ToolCalls = []model.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: model.FunctionDefinitionParam{Name: name, Arguments: args},
	}}
	return msg
}

// fakeBackend records task creation and serves fixed projects.
type fakeBackend struct {
	mu      sync.Mutex
	created []backend.TaskInput
}

func (b *fakeBackend) Projects(context.Context) ([]backend.Record, error) {
	return []backend.Record{{"id": "p-7", "name": "Website"}}, nil
}

func (b *fakeBackend) Project(_ context.Context, id string) (backend.Record, error) {
	if id != "p-7" {
		return nil, &backend.APIError{Method: "GET", Path: "/projects/" + id, StatusCode: 404, Message: "not found"}
	}
	return backend.Record{"id": "p-7", "name": "Website"}, nil
}

func (b *fakeBackend) Tasks(context.Context, string) ([]backend.Record, error) {
	return []backend.Record{{"status": "To Do", "priority": "High"}}, nil
}

func (b *fakeBackend) Meetings(context.Context, string) ([]backend.Record, error) {
	return nil, nil
}

func (b *fakeBackend) CurrentUser(context.Context) (backend.Record, error) {
	return backend.Record{"id": "u-1", "username": "lan"}, nil
}

func (b *fakeBackend) CreateTask(_ context.Context, in backend.TaskInput) (backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, in)
	return backend.Record{"id": "t-1", "title": in.Title, "projectId": in.ProjectID}, nil
}

func (b *fakeBackend) UpdateTaskStatus(_ context.Context, id, status string) (backend.Record, error) {
	return backend.Record{"id": id, "status": status}, nil
}

func toolMessages(msgs []model.Message) []model.Message {
	var out []model.Message
	for _, m := range msgs {
		if m.Role == model.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestChat_ToolLoopChainsCalls(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{}
	m := &chatModel{
		route: func(string) string { return "TOOL_CALL" },
		toolTurn: func(n int, req *model.Request) (model.Message, error) {
			switch n {
			case 1:
				return call("c1", ToolGetUserProjects, `{}`), nil
			case 2:
				last := req.Messages[len(req.Messages)-1]
				if !strings.Contains(last.Content, "p-7") {
					return model.Message{}, errors.New("project id not visible")
				}
				return call("c2", ToolCreateTask, `{"title":"Fix login","project_id":"p-7","priority":"urgent"}`), nil
			default:
				return model.NewAssistantMessage("Created 'Fix login' in Website."), nil
			}
		},
	}
	a, err := New(m, inmemory.NewSaver(), WithBackend(be))
	require.NoError(t, err)

	rep, err := a.Chat(ctx, "conv-1", "Create a task Fix login in Website")
	require.NoError(t, err)
	assert.Equal(t, RouteToolCall, rep.Route)
	assert.Equal(t, int64(1), rep.Turn)
	assert.Equal(t, "Created 'Fix login' in Website.", rep.Response)
	assert.Equal(t, 3, m.toolRuns)

	require.Len(t, be.created, 1)
	assert.Equal(t, "p-7", be.created[0].ProjectID)

	history, err := a.History(ctx, "conv-1")
	require.NoError(t, err)
	tools := toolMessages(history)
	require.Len(t, tools, 2)
	assert.Equal(t, ToolGetUserProjects, tools[0].ToolName)
	assert.Equal(t, "c2", tools[1].ToolID)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "Created 'Fix login' in Website.", history[len(history)-1].Content)
}

func TestChat_UnknownToolResultReachesNextTurn(t *testing.T) {
	ctx := context.Background()
	var seen string
	m := &chatModel{
		route: func(string) string { return "TOOL_CALL" },
		toolTurn: func(n int, req *model.Request) (model.Message, error) {
			if n == 1 {
				return call("c1", "lookupProject", `{"name":"Website"}`), nil
			}
			seen = req.Messages[len(req.Messages)-1].Content
			return model.NewAssistantMessage("I could not look that up."), nil
		},
	}
	a, err := New(m, inmemory.NewSaver(), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	rep, err := a.Chat(ctx, "conv-2", "status of Website?")
	require.NoError(t, err)
	assert.Equal(t, "I could not look that up.", rep.Response)
	assert.Contains(t, seen, "unknown capability: lookupProject")
}

func TestChat_EmptyToolTurnUsesFallback(t *testing.T) {
	m := &chatModel{
		route: func(string) string { return "TOOL_CALL" },
		toolTurn: func(int, *model.Request) (model.Message, error) {
			return model.NewAssistantMessage(""), nil
		},
	}
	a, err := New(m, inmemory.NewSaver(), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	rep, err := a.Chat(context.Background(), "conv-3", "my tasks")
	require.NoError(t, err)
	assert.Equal(t, graph.DefaultFallbackMessage, rep.Response)
	assert.Equal(t, 1, m.toolRuns)
}

func TestChat_RAGUsesRetrievedDocuments(t *testing.T) {
	kb := knowledge.NewIndex()
	require.NoError(t, kb.Add(&document.Document{
		ID:      "fees",
		Name:    "fees.md",
		Content: "# Fees\n\nA change request after sign-off is billed as extra work.",
	}))
	m := &chatModel{route: func(string) string { return "RAG" }}
	a, err := New(m, inmemory.NewSaver(), WithKnowledge(kb))
	require.NoError(t, err)
	assert.Contains(t, a.Tools(), "search_documents")

	rep, err := a.Chat(context.Background(), "conv-4", "Is a change request billed?")
	require.NoError(t, err)
	assert.Equal(t, RouteRAG, rep.Route)
	assert.Contains(t, rep.Response, "billed as extra work")
	assert.Contains(t, rep.Response, "Question: Is a change request billed?")
}

func TestChat_RAGWithoutKnowledgeAnswersDirectly(t *testing.T) {
	m := &chatModel{route: func(string) string { return "RAG" }}
	a, err := New(m, inmemory.NewSaver())
	require.NoError(t, err)
	_, ok := a.Graph().Node(NodeRetriever)
	assert.False(t, ok)

	rep, err := a.Chat(context.Background(), "conv-5", "What is the escalation process?")
	require.NoError(t, err)
	assert.Equal(t, "answer: What is the escalation process?", rep.Response)
}

func TestChat_UnknownRouteAnswersDirectly(t *testing.T) {
	m := &chatModel{route: func(string) string { return "SOMETHING" }}
	a, err := New(m, inmemory.NewSaver())
	require.NoError(t, err)

	rep, err := a.Chat(context.Background(), "conv-6", "hello")
	require.NoError(t, err)
	assert.Equal(t, RouteDirect, rep.Route)
	assert.Equal(t, "answer: hello", rep.Response)
}

func TestChat_HistoryAccumulatesAcrossTurns(t *testing.T) {
	ctx := context.Background()
	m := &chatModel{route: func(string) string { return "DIRECT" }}
	saver := inmemory.NewSaver()
	a, err := New(m, saver)
	require.NoError(t, err)

	_, err = a.Chat(ctx, "conv-7", "hi")
	require.NoError(t, err)
	rep, err := a.Chat(ctx, "conv-7", "thanks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rep.Turn)

	history, err := a.History(ctx, "conv-7")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "answer: thanks", history[3].Content)

	// The second direct answer saw the first exchange.
	last := m.requests[len(m.requests)-1]
	assert.Equal(t, "hi", last.Messages[1].Content)

	turn, err := saver.Load(ctx, TurnID("conv-7", 2))
	require.NoError(t, err)
	require.NotNil(t, turn)
	assert.True(t, turn.Cursor.IsTerminated())

	require.NoError(t, a.Reset(ctx, "conv-7"))
	history, err = a.History(ctx, "conv-7")
	require.NoError(t, err)
	assert.Empty(t, history)
	turn, err = saver.Load(ctx, TurnID("conv-7", 1))
	require.NoError(t, err)
	assert.Nil(t, turn)
}

func TestChat_FailedTurnRetriesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	fail := true
	m := &chatModel{
		route: func(string) string { return "TOOL_CALL" },
		toolTurn: func(int, *model.Request) (model.Message, error) {
			if fail {
				return model.Message{}, errors.New("upstream unavailable")
			}
			return model.NewAssistantMessage("You have one task."), nil
		},
	}
	a, err := New(m, inmemory.NewSaver(), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	_, err = a.Chat(ctx, "conv-8", "my tasks")
	var fault *graph.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, NodeToolGenerator, fault.Node)
	routerCalls := len(m.requests) - m.toolRuns

	fail = false
	rep, err := a.Chat(ctx, "conv-8", "my tasks")
	require.NoError(t, err)
	assert.Equal(t, "You have one task.", rep.Response)
	assert.Equal(t, int64(1), rep.Turn)
	assert.Equal(t, routerCalls, len(m.requests)-m.toolRuns, "router must not run again")
}

func TestChat_NewQueryDiscardsFailedTurn(t *testing.T) {
	ctx := context.Background()
	m := &chatModel{
		route: func(q string) string {
			if q == "my tasks" {
				return "TOOL_CALL"
			}
			return "DIRECT"
		},
		toolTurn: func(int, *model.Request) (model.Message, error) {
			return model.Message{}, errors.New("upstream unavailable")
		},
	}
	a, err := New(m, inmemory.NewSaver(), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	_, err = a.Chat(ctx, "conv-9", "my tasks")
	require.Error(t, err)

	rep, err := a.Chat(ctx, "conv-9", "hello")
	require.NoError(t, err)
	assert.Equal(t, "answer: hello", rep.Response)
	history, err := a.History(ctx, "conv-9")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
}

func TestChat_Validation(t *testing.T) {
	a, err := New(&chatModel{route: func(string) string { return "DIRECT" }}, inmemory.NewSaver())
	require.NoError(t, err)
	_, err = a.Chat(context.Background(), "", "hi")
	assert.ErrorIs(t, err, graph.ErrThreadIDRequired)
	_, err = a.Chat(context.Background(), "conv", "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = New(nil, inmemory.NewSaver())
	assert.Error(t, err)
	_, err = New(&chatModel{}, nil)
	assert.Error(t, err)
}

func TestTrimHistory(t *testing.T) {
	h := []model.Message{
		model.NewUserMessage("q1"),
		call("c1", "x", "{}"),
		model.NewToolMessage("c1", "x", "r"),
		model.NewAssistantMessage("a1"),
		model.NewUserMessage("q2"),
		model.NewAssistantMessage("a2"),
	}
	assert.Equal(t, h, trimHistory(h, 0))
	assert.Equal(t, h[4:], trimHistory(h, 4))
	assert.Equal(t, h, trimHistory(h, 6))
	assert.Nil(t, trimHistory(h, 1))
}

func TestLastTurns(t *testing.T) {
	h := []model.Message{
		model.NewUserMessage("q1"),
		call("c1", "x", "{}"),
		model.NewToolMessage("c1", "x", "r"),
		model.NewAssistantMessage("a1"),
	}
	got := lastTurns(h, 4)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)
}

func TestTools_GetProjectTasksSummarizes(t *testing.T) {
	a, err := New(&chatModel{}, inmemory.NewSaver(), WithBackend(&fakeBackend{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		ToolGetUserProjects, ToolGetProjectDetails, ToolGetProjectTasks, ToolGetProjectMeetings,
		ToolCreateTask, ToolUpdateTaskStatus, ToolGetCurrentUserInfo,
	}, a.Tools())

	res := a.registry.Dispatch(context.Background(), ToolGetProjectTasks, []byte(`{"project_id":"p-7"}`))
	require.True(t, res.OK(), res.Error)
	out := res.Value.(map[string]any)
	assert.Equal(t, backend.Summarize([]backend.Record{{"status": "To Do", "priority": "High"}}), out["summary"])

	res = a.registry.Dispatch(context.Background(), ToolGetProjectDetails, []byte(`{"project_id":"nope"}`))
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "not found")

	res = a.registry.Dispatch(context.Background(), ToolUpdateTaskStatus, []byte(`{"task_id":"t-1","status":"Blocked"}`))
	assert.False(t, res.OK())
}

func TestChat_LeavesOtherThreadsInSharedSaver(t *testing.T) {
	ctx := context.Background()
	saver := inmemory.NewSaver()
	_, err := saver.Save(ctx, graph.SaveRequest{
		ThreadID: "meeting/42",
		Cursor:   graph.Halted("create_tasks"),
		State:    graph.State{"mom": "Kickoff"},
	})
	require.NoError(t, err)
	_, err = saver.Save(ctx, graph.SaveRequest{ThreadID: "42", Cursor: graph.Halted("x"), State: graph.State{}})
	require.NoError(t, err)

	a, err := New(&chatModel{route: func(string) string { return "DIRECT" }}, saver)
	require.NoError(t, err)
	rep, err := a.Chat(ctx, "42", "hi")
	require.NoError(t, err)
	assert.Equal(t, "42", rep.ThreadID)
	assert.Equal(t, int64(1), rep.Turn)

	for _, id := range []string{"meeting/42", "42"} {
		cp, err := saver.Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.True(t, cp.Cursor.IsHalted(), id)
		assert.Equal(t, int64(1), cp.Sequence, id)
	}

	transcript, err := saver.Load(ctx, ThreadKey("42"))
	require.NoError(t, err)
	require.NotNil(t, transcript)
	assert.Len(t, graph.Messages(transcript.State), 2)

	require.NoError(t, a.Reset(ctx, "42"))
	cp, err := saver.Load(ctx, "meeting/42")
	require.NoError(t, err)
	assert.NotNil(t, cp, "reset only deletes chat threads")
}

func TestChat_LastTurn(t *testing.T) {
	ctx := context.Background()
	a, err := New(&chatModel{route: func(string) string { return "DIRECT" }}, inmemory.NewSaver())
	require.NoError(t, err)

	cp, err := a.LastTurn(ctx, "conv-10")
	require.NoError(t, err)
	assert.Nil(t, cp)

	_, err = a.Chat(ctx, "conv-10", "hi")
	require.NoError(t, err)
	_, err = a.Chat(ctx, "conv-10", "again")
	require.NoError(t, err)
	cp, err = a.LastTurn(ctx, "conv-10")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, TurnID("conv-10", 2), cp.ThreadID)
	assert.True(t, cp.Cursor.IsTerminated())
	assert.Equal(t, "chat/conv-10/2", TurnID("conv-10", 2))
}
