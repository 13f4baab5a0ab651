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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	itool "github.com/phuocNg964/ProMeet-AI/internal/tool"
)

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = errors.New("model: empty response")

// StructuredOption configures GenerateStructured.
type StructuredOption func(*structuredOptions)

type structuredOptions struct {
	name        string
	description string
	config      GenerationConfig
}

// WithSchemaName names the output schema sent to the model.
func WithSchemaName(name string) StructuredOption {
	return func(o *structuredOptions) { o.name = name }
}

// WithSchemaDescription describes the output schema sent to the model.
func WithSchemaDescription(desc string) StructuredOption {
	return func(o *structuredOptions) { o.description = desc }
}

// WithStructuredGenerationConfig sets sampling parameters for the call.
func WithStructuredGenerationConfig(cfg GenerationConfig) StructuredOption {
	return func(o *structuredOptions) { o.config = cfg }
}

// GenerateStructured asks m for a response shaped like T and decodes it.
// Both call-level errors and API-level response errors are returned as
// errors, as is content that does not decode into T.
func GenerateStructured[T any](
	ctx context.Context,
	m Model,
	messages []Message,
	opts ...StructuredOption,
) (T, error) {
	var out T
	o := &structuredOptions{}
	for _, opt := range opts {
		opt(o)
	}
	typ := reflect.TypeOf(out)
	if o.name == "" {
		o.name = schemaName(typ)
	}
	req := &Request{
		Messages:         messages,
		GenerationConfig: o.config,
		StructuredOutput: &StructuredOutput{
			Type: StructuredOutputJSONSchema,
			JSONSchema: &JSONSchemaConfig{
				Name:        o.name,
				Description: o.description,
				Schema:      itool.GenerateJSONSchema(typ).Map(),
			},
		},
	}
	rsp, err := m.GenerateContent(ctx, req)
	if err != nil {
		return out, fmt.Errorf("generate %s: %w", o.name, err)
	}
	if rsp == nil {
		return out, fmt.Errorf("generate %s: %w", o.name, ErrEmptyResponse)
	}
	if err := rsp.Err(); err != nil {
		return out, fmt.Errorf("generate %s: %w", o.name, err)
	}
	content := strings.TrimSpace(rsp.Message().Content)
	if content == "" {
		return out, fmt.Errorf("generate %s: %w", o.name, ErrEmptyResponse)
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &out); err != nil {
		return out, fmt.Errorf("decode %s output: %w", o.name, err)
	}
	return out, nil
}

func schemaName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "output"
	}
	return t.Name()
}

// stripCodeFence removes a surrounding ```json fence some models emit.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
