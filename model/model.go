//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model is the chat-model boundary used by the workflow nodes.
//
// A Model call fails in two ways. A returned error means the request never
// completed (transport, encoding, cancellation). A Response whose Error is
// set means the provider answered with a refusal or API fault; Response.Err
// folds that case into an error for callers that treat both alike.
package model

import "context"

// Model generates one complete reply per request.
type Model interface {
	GenerateContent(ctx context.Context, request *Request) (*Response, error)
	Info() Info
}

// Info describes a Model.
type Info struct {
	Name string
}

// Role is the author of a Message.
type Role string

// Message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one conversation turn. Tool results carry ToolID and ToolName
// of the call they answer; assistant turns may carry ToolCalls.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolID    string     `json:"tool_id,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Empty reports a turn with neither text nor tool calls.
func (m Message) Empty() bool { return m.Content == "" && !m.HasToolCalls() }

func NewSystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func NewUserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage answers the tool call toolID.
func NewToolMessage(toolID, toolName, content string) Message {
	return Message{Role: RoleTool, ToolID: toolID, ToolName: toolName, Content: content}
}
