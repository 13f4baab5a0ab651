//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/tool"
)

type lookupTool struct{}

func (lookupTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        "get_project_details",
		Description: "Get project details",
		InputSchema: &tool.Schema{
			Type:       "object",
			Required:   []string{"project_id"},
			Properties: map[string]*tool.Schema{"project_id": {Type: "string"}},
		},
	}
}

func newServer(t *testing.T, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
}

func TestModel_GenerateContent_ToolCalls(t *testing.T) {
	var req map[string]any
	srv := newServer(t, `{
		"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_project_details","arguments":"{\"project_id\":\"p1\"}"}}]}}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
	}`, &req)
	defer srv.Close()

	m := New("gpt-4o-mini", WithBaseURL(srv.URL), WithAPIKey("test"), WithMaxRetries(0))
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)

	rsp, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("you manage projects"),
			model.NewUserMessage("what is p1?"),
		},
		Tools: map[string]tool.Tool{"get_project_details": lookupTool{}},
	})
	require.NoError(t, err)
	require.NoError(t, rsp.Err())
	require.True(t, rsp.Message().HasToolCalls())
	call := rsp.Message().ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_project_details", call.Function.Name)
	assert.JSONEq(t, `{"project_id":"p1"}`, call.Function.Arguments)
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 15, rsp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", req["model"])
	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_project_details", fn["name"])
}

func TestModel_GenerateContent_StructuredOutput(t *testing.T) {
	var req map[string]any
	srv := newServer(t, `{
		"id":"chatcmpl-2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"decision\":\"accept\"}"}}]
	}`, &req)
	defer srv.Close()

	m := New("gpt-4o-mini", WithBaseURL(srv.URL), WithAPIKey("test"), WithMaxRetries(0))
	type out struct {
		Decision string `json:"decision"`
	}
	v, err := model.GenerateStructured[out](context.Background(), m,
		[]model.Message{model.NewUserMessage("judge")})
	require.NoError(t, err)
	assert.Equal(t, "accept", v.Decision)

	format := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestModel_GenerateContent_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	m := New("nope", WithBaseURL(srv.URL), WithAPIKey("test"), WithMaxRetries(0))
	rsp, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	require.NotNil(t, rsp.Error)
	assert.Equal(t, model.ErrorTypeAPIError, rsp.Error.Type)

	_, err = m.GenerateContent(context.Background(), nil)
	require.Error(t, err)
}

func TestModel_GenerateContent_Canceled(t *testing.T) {
	srv := newServer(t, `{}`, nil)
	defer srv.Close()
	m := New("gpt-4o-mini", WithBaseURL(srv.URL), WithAPIKey("test"), WithMaxRetries(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GenerateContent(ctx, &model.Request{Messages: []model.Message{model.NewUserMessage("hi")}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParams_Sampling(t *testing.T) {
	maxTokens, temp := 64, 0.2
	m := New("gpt-4o-mini")
	p := m.params(&model.Request{
		GenerationConfig: model.GenerationConfig{MaxTokens: &maxTokens, Temperature: &temp, Stop: []string{"END"}},
	})
	assert.Equal(t, int64(64), p.MaxCompletionTokens.Value)
	assert.Equal(t, 0.2, p.Temperature.Value)
	assert.Equal(t, "END", p.Stop.OfString.Value)
	assert.Empty(t, p.Tools)
}

func TestConvertMessages_Roles(t *testing.T) {
	msgs := convertMessages([]model.Message{
		model.NewSystemMessage("s"),
		model.NewUserMessage("u"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "c1", Function: model.FunctionDefinitionParam{Name: "x", Arguments: "{}"}}}},
		model.NewToolMessage("c1", "x", `{"ok":true}`),
	})
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}
