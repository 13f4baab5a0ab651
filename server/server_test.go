//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/agent/meetingtask"
	"github.com/phuocNg964/ProMeet-AI/agent/projectmanager"
	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/inmemory"
	"github.com/phuocNg964/ProMeet-AI/model"
)

// stubModel answers every structured request with a fixed value.
type stubModel struct{}

func (stubModel) GenerateContent(_ context.Context, req *model.Request) (*model.Response, error) {
	var v any = "hello back"
	if req.StructuredOutput != nil {
		switch req.StructuredOutput.JSONSchema.Name {
		case "MeetingOutput":
			v = meetingtask.MeetingOutput{
				Summary:     "Kickoff",
				ActionItems: []backend.ActionItem{{Title: "Draft plan", Assignee: "lan"}},
			}
		case "ReflectionOutput":
			v = meetingtask.ReflectionOutput{Decision: "accept"}
		case "RouterOutput":
			v = projectmanager.RouterOutput{Decision: "DIRECT"}
		}
	}
	content, ok := v.(string)
	if !ok {
		b, _ := json.Marshal(v)
		content = string(b)
	}
	return &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}}}, nil
}

func (stubModel) Info() model.Info { return model.Info{Name: "stub"} }

type tokenSink struct {
	mu    sync.Mutex
	token string
	items []backend.ActionItem
}

func (s *tokenSink) CreateRecords(ctx context.Context, items []backend.ActionItem, _ backend.Routing) ([]backend.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = backend.BearerToken(ctx)
	s.items = items
	out := make([]backend.Record, 0, len(items))
	for _, it := range items {
		out = append(out, backend.Record{"id": "t-" + it.Title, "title": it.Title})
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *tokenSink) {
	t.Helper()
	sink := &tokenSink{}
	progress := NewProgress()
	hooks := graph.WithExecutorHooks(progress.Hooks())
	saver := inmemory.NewSaver()
	meetings, err := meetingtask.New(stubModel{}, sink, saver, meetingtask.WithExecutorOptions(hooks))
	require.NoError(t, err)
	chat, err := projectmanager.New(stubModel{}, saver, projectmanager.WithExecutorOptions(hooks))
	require.NoError(t, err)
	s, err := New(meetings, chat, WithWorkers(2), WithProgress(progress))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, sink
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_MeetingLifecycle(t *testing.T) {
	s, sink := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/meeting/analyze", map[string]any{
		"meeting_id": 42,
		"transcript": "lan: I will draft the plan.",
		"meeting_metadata": map[string]any{
			"title":        "Kickoff",
			"project_id":   7,
			"participants": []map[string]any{{"id": 3, "username": "lan"}},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "42", body["thread_id"])
	assert.Equal(t, StatusProcessing, body["status"])

	require.Eventually(t, func() bool {
		_, body := do(t, s, http.MethodGet, "/api/v1/meeting/42", nil)
		return body["status"] == "awaiting_review"
	}, 5*time.Second, 10*time.Millisecond)

	_, body = do(t, s, http.MethodGet, "/api/v1/meeting/42", nil)
	assert.Equal(t, "Kickoff", body["mom"])
	assert.Equal(t, meetingtask.NodeReflection, body["node"])
	assert.Nil(t, sink.items, "tasks must not be created before review")

	rec, body = do(t, s, http.MethodPost, "/api/v1/meeting/42/review", map[string]any{
		"action_items": []map[string]any{{"title": "Draft plan v2", "assignee": "lan"}},
	}, "Authorization", "Bearer user-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
	require.Len(t, body["tasks_created"], 1)
	assert.Equal(t, "user-token", sink.token)
	require.Len(t, sink.items, 1)
	assert.Equal(t, "Draft plan v2", sink.items[0].Title)

	assert.Zero(t, s.progress.Len(), "finished meetings are not tracked")

	rec, _ = do(t, s, http.MethodPost, "/api/v1/meeting/42/review", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ChatDoesNotTouchMeetingWithSameID(t *testing.T) {
	s, sink := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/meeting/analyze", map[string]any{
		"meeting_id": "42", "transcript": "lan: I will draft the plan.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		_, body := do(t, s, http.MethodGet, "/api/v1/meeting/42", nil)
		return body["status"] == "awaiting_review"
	}, 5*time.Second, 10*time.Millisecond)

	rec, body := do(t, s, http.MethodPost, "/api/v1/project/chat", map[string]any{
		"query": "hi", "thread_id": "42",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello back", body["response"])

	_, body = do(t, s, http.MethodGet, "/api/v1/meeting/42", nil)
	assert.Equal(t, "awaiting_review", body["status"])
	assert.Equal(t, "Kickoff", body["mom"])

	rec, body = do(t, s, http.MethodPost, "/api/v1/meeting/42/review", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Len(t, sink.items, 1)

	_, body = do(t, s, http.MethodGet, "/api/v1/project/chat/42", nil)
	assert.Len(t, body["messages"], 2)
}

func TestServer_AnalyzeValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/meeting/analyze", map[string]any{"meeting_id": "m1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, s, http.MethodPost, "/api/v1/meeting/analyze", map[string]any{
		"meeting_id": "m2", "transcript": "t", "summary": "s",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSkipped, body["status"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/meeting/analyze", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_UnknownMeeting(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/api/v1/meeting/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/meeting/nope/review", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ClaimRejectsConcurrentRuns(t *testing.T) {
	s, _ := newTestServer(t)
	require.True(t, s.claim(meetingtask.ThreadKey("m")))
	rec, _ := do(t, s, http.MethodPost, "/api/v1/meeting/analyze", map[string]any{
		"meeting_id": "m", "transcript": "t",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	_, body := do(t, s, http.MethodGet, "/api/v1/meeting/m", nil)
	assert.Equal(t, StatusProcessing, body["status"])
	s.release(meetingtask.ThreadKey("m"), nil)

	require.True(t, s.claim(projectmanager.ThreadKey("m")), "chat and meetings claim separately")
	s.release(projectmanager.ThreadKey("m"), nil)
}

func TestServer_Chat(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/project/chat", map[string]any{
		"query": "hi", "thread_id": "c1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello back", body["response"])
	assert.Equal(t, "c1", body["thread_id"])
	assert.Equal(t, "DIRECT", body["route"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/project/chat/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["messages"], 2)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/project/chat", map[string]any{"query": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, s.progress.Len(), "chat turns are not tracked after they answer")

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/project/chat/c1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, body = do(t, s, http.MethodGet, "/api/v1/project/chat/c1", nil)
	assert.Empty(t, body["messages"])
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/healthz", nil)
	rec, _ := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `promeet_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestProgress_Forget(t *testing.T) {
	p := NewProgress()
	for _, id := range []string{"chat/c1", "chat/c1/1", "chat/c1/2", "chat/c10/1", "meeting/c1"} {
		p.nodes[id] = "router"
	}
	p.Forget("chat/c1")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "router", p.Node("chat/c10/1"))
	assert.Equal(t, "router", p.Node("meeting/c1"))
	assert.Empty(t, p.Node("chat/c1/2"))

	var nilProgress *Progress
	nilProgress.Forget("x")
}
