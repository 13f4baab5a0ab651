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
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	itelemetry "github.com/phuocNg964/ProMeet-AI/internal/telemetry"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/telemetry/metric"
	"github.com/phuocNg964/ProMeet-AI/telemetry/trace"
	"github.com/phuocNg964/ProMeet-AI/tool"
)

// Routing outcomes of ToolsCondition.
const (
	RouteTools = "tools"
	RouteEnd   = "end"
)

// DefaultFallbackMessage replaces an empty model turn.
const DefaultFallbackMessage = "I checked the data but couldn't find specific information, " +
	"or the task is already done. Anything else I can help with?"

// MessagesStateSchema creates a state schema for conversation workflows.
// The messages field appends, so every turn survives in order.
func MessagesStateSchema() *StateSchema {
	schema := NewStateSchema()
	schema.AddField(StateKeyMessages, StateField{
		Policy:  PolicyAppend,
		Type:    reflect.TypeOf([]model.Message{}),
		Default: func() any { return []model.Message{} },
	})
	schema.AddField(StateKeyUserInput, StateField{
		Type: reflect.TypeOf(""),
	})
	schema.AddField(StateKeyLastResponse, StateField{
		Type: reflect.TypeOf(""),
	})
	schema.AddField(StateKeyMetadata, StateField{
		Type:    reflect.TypeOf(map[string]any{}),
		Reducer: MergeReducer,
		Default: func() any { return make(map[string]any) },
	})
	return schema
}

// Messages returns the conversation history held in state.
func Messages(state State) []model.Message {
	msgs, _ := state[StateKeyMessages].([]model.Message)
	return msgs
}

// ProposeOption configures NewProposeNodeFunc.
type ProposeOption func(*proposeOptions)

type proposeOptions struct {
	fallback string
	config   model.GenerationConfig
	queryKey string
}

// WithFallbackMessage sets the reply used when the model returns neither
// content nor tool calls.
func WithFallbackMessage(msg string) ProposeOption {
	return func(o *proposeOptions) {
		o.fallback = msg
	}
}

// WithGenerationConfig sets the generation parameters of the propose call.
func WithGenerationConfig(cfg model.GenerationConfig) ProposeOption {
	return func(o *proposeOptions) {
		o.config = cfg
	}
}

// WithQueryKey sets the state key whose string value opens the conversation
// when the history is empty. Defaults to StateKeyUserInput.
func WithQueryKey(key string) ProposeOption {
	return func(o *proposeOptions) {
		o.queryKey = key
	}
}

// NewProposeNodeFunc creates the node that asks the model for the next turn.
// The assistant message, with any tool calls, is appended to the history.
// An empty turn is replaced by the fallback message so the loop ends.
func NewProposeNodeFunc(llm model.Model, instruction string, registry *tool.Registry, opts ...ProposeOption) NodeFunc {
	o := proposeOptions{fallback: DefaultFallbackMessage, queryKey: StateKeyUserInput}
	for _, opt := range opts {
		opt(&o)
	}
	return func(ctx context.Context, state State) (any, error) {
		ctx, span := trace.Tracer.Start(ctx, "propose")
		defer span.End()

		history := Messages(state)
		var added []model.Message
		if len(history) == 0 {
			if input, _ := state[o.queryKey].(string); input != "" {
				added = append(added, model.NewUserMessage(input))
			}
		}
		if len(history) == 0 && len(added) == 0 {
			return nil, errors.New("propose: no conversation to answer")
		}

		msgs := make([]model.Message, 0, len(history)+len(added)+1)
		if instruction != "" {
			msgs = append(msgs, model.NewSystemMessage(instruction))
		}
		msgs = append(msgs, history...)
		msgs = append(msgs, added...)
		req := &model.Request{
			Messages:         msgs,
			GenerationConfig: o.config,
		}
		if registry != nil {
			req.Tools = registry.Tools()
		}

		rsp, err := llm.GenerateContent(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("propose: %w", err)
		}
		if err := rsp.Err(); err != nil {
			return nil, fmt.Errorf("propose: %w", err)
		}
		reply := rsp.Message()
		reply.Role = model.RoleAssistant
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
			if reply.ToolCalls[i].Type == "" {
				reply.ToolCalls[i].Type = "function"
			}
		}
		if reply.Empty() {
			log.Warnf("graph: propose returned an empty turn, using fallback")
			reply.Content = o.fallback
		}
		span.SetAttributes(attribute.Int("promeet.graph.tool_calls", len(reply.ToolCalls)))

		update := State{StateKeyMessages: append(added, reply)}
		if !reply.HasToolCalls() {
			update[StateKeyLastResponse] = reply.Content
		}
		return update, nil
	}
}

// ToolsOption configures NewToolsNodeFunc.
type ToolsOption func(*toolsOptions)

type toolsOptions struct {
	meter otelmetric.Meter
}

// WithToolsMeter sets the meter recording tool dispatches.
func WithToolsMeter(m otelmetric.Meter) ToolsOption {
	return func(o *toolsOptions) {
		o.meter = m
	}
}

// NewToolsNodeFunc creates the node that dispatches the tool calls of the
// last assistant message. Unknown tools and failed calls become tool result
// messages, so one bad call never aborts the conversation.
func NewToolsNodeFunc(registry *tool.Registry, opts ...ToolsOption) (NodeFunc, error) {
	if registry == nil {
		return nil, errors.New("tools node: registry is nil")
	}
	var o toolsOptions
	for _, opt := range opts {
		opt(&o)
	}
	instruments, err := metric.NewGraphInstruments(o.meter)
	if err != nil {
		return nil, fmt.Errorf("tools node: %w", err)
	}
	return func(ctx context.Context, state State) (any, error) {
		history := Messages(state)
		if len(history) == 0 {
			return nil, errors.New("tools node: no messages in state")
		}
		last := history[len(history)-1]
		if last.Role != model.RoleAssistant {
			return nil, errors.New("tools node: last message is not an assistant message")
		}
		results := make([]model.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			res := dispatch(ctx, registry, call)
			instruments.ToolDispatches.Add(ctx, 1, otelmetric.WithAttributes(
				attribute.String(itelemetry.KeyToolName, call.Function.Name),
				attribute.String(itelemetry.KeyToolOutcome, string(res.Outcome)),
			))
			results = append(results, model.NewToolMessage(call.ID, call.Function.Name, res.Content()))
		}
		return State{StateKeyMessages: results}, nil
	}, nil
}

func dispatch(ctx context.Context, registry *tool.Registry, call model.ToolCall) tool.Result {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.ToolSpanName(call.Function.Name))
	defer span.End()
	args := []byte(call.Function.Arguments)
	res := registry.Dispatch(ctx, call.Function.Name, args)
	itelemetry.TraceToolCall(span, call.Function.Name, call.ID, args, string(res.Outcome))
	if !res.OK() {
		log.Warnf("graph: tool %s (%s): %s", call.Function.Name, res.Outcome, res.Error)
	}
	return res
}

// ToolsCondition routes to RouteTools when the last assistant message
// requests tool calls and to RouteEnd otherwise.
func ToolsCondition(_ context.Context, state State) (string, error) {
	history := Messages(state)
	if len(history) == 0 {
		return RouteEnd, nil
	}
	last := history[len(history)-1]
	if last.Role == model.RoleAssistant && len(last.ToolCalls) > 0 {
		return RouteTools, nil
	}
	return RouteEnd, nil
}

// AddToolsConditionalEdges routes propose to tools while tool calls are
// requested and to done otherwise; tools always returns to propose.
func (sg *StateGraph) AddToolsConditionalEdges(propose, tools, done string) *StateGraph {
	sg.AddConditionalEdges(propose, ToolsCondition, map[string]string{
		RouteTools: tools,
		RouteEnd:   done,
	})
	return sg.AddEdge(tools, propose)
}
