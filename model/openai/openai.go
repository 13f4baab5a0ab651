//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package openai implements model.Model on the OpenAI chat completions API
// and compatible gateways.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/tool"
)

// Model is a chat completions client bound to one model name.
type Model struct {
	client openai.Client
	name   string
}

// Option configures New.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	maxRetries *int
	timeout    time.Duration
	extra      []option.RequestOption
}

// WithAPIKey sets the API key. Unset falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at a compatible gateway.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithMaxRetries sets how often a failed call is retried by the client.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = &n }
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRequestOptions appends raw openai-go request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// New creates a client for the named model.
func New(name string, opts ...Option) *Model {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var reqOpts []option.RequestOption
	if o.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.maxRetries != nil {
		reqOpts = append(reqOpts, option.WithMaxRetries(*o.maxRetries))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}
	return &Model{client: openai.NewClient(append(reqOpts, o.extra...)...), name: name}
}

// Info implements model.Model.
func (m *Model) Info() model.Info { return model.Info{Name: m.name} }

// GenerateContent implements model.Model. Provider faults come back in
// Response.Error; only cancellation and a nil request are returned as errors.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("openai: nil request")
	}
	completion, err := m.client.Chat.Completions.New(ctx, m.params(req))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &model.Response{
			Model:     m.name,
			Error:     &model.ResponseError{Type: model.ErrorTypeAPIError, Message: err.Error()},
			Timestamp: time.Now(),
		}, nil
	}
	rsp := fromCompletion(completion)
	if rsp.Usage != nil {
		log.Debugf("openai: %s used %d prompt + %d completion tokens",
			rsp.Model, rsp.Usage.PromptTokens, rsp.Usage.CompletionTokens)
	}
	return rsp, nil
}

func (m *Model) params(req *model.Request) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(req.Messages),
		Tools:    convertTools(req.Tools),
	}
	if so := req.StructuredOutput; so != nil && so.Type == model.StructuredOutputJSONSchema && so.JSONSchema != nil {
		schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   so.JSONSchema.Name,
			Schema: so.JSONSchema.Schema,
			Strict: openai.Bool(so.JSONSchema.Strict),
		}
		if so.JSONSchema.Description != "" {
			schema.Description = openai.String(so.JSONSchema.Description)
		}
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}
	if req.MaxTokens != nil {
		p.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		p.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		p.TopP = openai.Float(*req.TopP)
	}
	// Only the first stop sequence is forwarded.
	if len(req.Stop) > 0 {
		p.Stop = openai.ChatCompletionNewParamsStopUnion{OfString: openai.String(req.Stop[0])}
	}
	return p
}

func fromCompletion(c *openai.ChatCompletion) *model.Response {
	rsp := &model.Response{
		ID:        c.ID,
		Model:     c.Model,
		Choices:   make([]model.Choice, 0, len(c.Choices)),
		Timestamp: time.Now(),
	}
	for _, choice := range c.Choices {
		msg := model.Message{Role: model.RoleAssistant, Content: choice.Message.Content}
		for i, call := range choice.Message.ToolCalls {
			id := call.ID
			if id == "" {
				id = fmt.Sprintf("auto_call_%d", i)
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:   id,
				Type: "function",
				Function: model.FunctionDefinitionParam{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		out := model.Choice{Index: int(choice.Index), Message: msg}
		if choice.FinishReason != "" {
			reason := choice.FinishReason
			out.FinishReason = &reason
		}
		rsp.Choices = append(rsp.Choices, out)
	}
	if u := c.Usage; u.PromptTokens > 0 || u.CompletionTokens > 0 {
		rsp.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return rsp
}

// convertMessages maps history to request messages. Unknown roles are sent
// as user turns.
func convertMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolID))
		case model.RoleAssistant:
			out = append(out, assistantMessage(m))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func assistantMessage(m model.Message) openai.ChatCompletionMessageParamUnion {
	a := &openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		a.Content.OfString = openai.String(m.Content)
	}
	for _, call := range m.ToolCalls {
		a.ToolCalls = append(a.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: a}
}

// convertTools declares tools in name order so requests are reproducible.
func convertTools(tools map[string]tool.Tool) []openai.ChatCompletionToolParam {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]openai.ChatCompletionToolParam, 0, len(names))
	for _, name := range names {
		decl := tools[name].Declaration()
		fn := openai.FunctionDefinitionParam{Name: decl.Name}
		if decl.Description != "" {
			fn.Description = openai.String(decl.Description)
		}
		if decl.InputSchema != nil {
			fn.Parameters = shared.FunctionParameters(decl.InputSchema.Map())
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}
