//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import "github.com/phuocNg964/ProMeet-AI/tool"

// GenerationConfig holds sampling parameters. Nil fields use the provider
// default.
type GenerationConfig struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// StructuredOutputType names a structured output mode.
type StructuredOutputType string

// StructuredOutputJSONSchema constrains the reply to a JSON schema.
const StructuredOutputJSONSchema StructuredOutputType = "json_schema"

// JSONSchemaConfig is the schema a structured reply must satisfy.
type JSONSchemaConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict,omitempty"`
}

// StructuredOutput asks for a reply in a declared shape instead of free text.
type StructuredOutput struct {
	Type       StructuredOutputType `json:"type"`
	JSONSchema *JSONSchemaConfig    `json:"json_schema,omitempty"`
}

// Request is one model call. Tools are offered to the model by name and are
// never serialized with the request.
type Request struct {
	Messages         []Message `json:"messages"`
	GenerationConfig `json:",inline"`
	StructuredOutput *StructuredOutput    `json:"structured_output,omitempty"`
	Tools            map[string]tool.Tool `json:"-"`
}

// ToolCall is a model request to invoke a named tool. Type is always
// "function".
type ToolCall struct {
	Type     string                  `json:"type"`
	Function FunctionDefinitionParam `json:"function,omitempty"`
	ID       string                  `json:"id,omitempty"`
}

// FunctionDefinitionParam names the tool and carries the model's raw JSON
// arguments. Arguments stay a string so malformed output survives the
// checkpoint round trip and reaches dispatch as an invalid-arguments result.
type FunctionDefinitionParam struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
}
