//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool provides tool declarations, invocation interfaces and a
// name-keyed registry used for capability dispatch.
package tool

import "context"

// Tool is anything the model can be told about.
type Tool interface {
	// Declaration returns the metadata describing the tool.
	Declaration() *Declaration
}

// CallableTool is a Tool the dispatcher can invoke.
type CallableTool interface {
	// Call decodes jsonArgs into the tool's input and runs it.
	Call(ctx context.Context, jsonArgs []byte) (any, error)

	Tool
}

// Declaration is what a model sees of a tool.
type Declaration struct {
	// Name is the registry key and the name the model calls.
	Name string `json:"name"`

	// Description is shown to the model verbatim.
	Description string `json:"description"`

	InputSchema  *Schema `json:"inputSchema"`
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Schema is the subset of JSON Schema used for tool arguments and structured
// model output.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	// Items is the element schema of an array.
	Items *Schema `json:"items,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// Nullable marks pointer fields. It is rendered as a ["type","null"] union.
	Nullable bool `json:"-"`
	// AdditionalProperties is false, true or a *Schema.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// Map renders the schema as a plain JSON-schema map.
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	switch {
	case s.Type != "" && s.Nullable:
		out["type"] = []any{s.Type, "null"}
	case s.Type != "":
		out["type"] = s.Type
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		out["required"] = req
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = v.Map()
		}
		out["properties"] = props
	}
	if s.Items != nil {
		out["items"] = s.Items.Map()
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	switch ap := s.AdditionalProperties.(type) {
	case nil:
	case *Schema:
		out["additionalProperties"] = ap.Map()
	default:
		out["additionalProperties"] = ap
	}
	return out
}
