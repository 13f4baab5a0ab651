//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"fmt"
	"time"
)

// ErrorTypeAPIError marks a fault reported by the provider.
const ErrorTypeAPIError = "api_error"

// ResponseError is a provider-side fault attached to a Response.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return "model: " + e.Message
	}
	return fmt.Sprintf("model %s: %s", e.Type, e.Message)
}

// Choice is one candidate reply.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage counts tokens spent on a call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed model call. Only the first choice is consumed.
type Response struct {
	ID        string         `json:"id"`
	Model     string         `json:"model"`
	Choices   []Choice       `json:"choices"`
	Usage     *Usage         `json:"usage,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Err returns the provider fault, if any, as an error.
func (rsp *Response) Err() error {
	if rsp == nil || rsp.Error == nil {
		return nil
	}
	return rsp.Error
}

// Message returns the first choice's message, or an empty assistant turn.
func (rsp *Response) Message() Message {
	if rsp == nil || len(rsp.Choices) == 0 {
		return Message{Role: RoleAssistant}
	}
	return rsp.Choices[0].Message
}
