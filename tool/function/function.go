//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function turns typed Go functions into callable tools. The input
// schema offered to the model and used by the registry's argument check is
// derived from the input type.
package function

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	itool "github.com/phuocNg964/ProMeet-AI/internal/tool"
	"github.com/phuocNg964/ProMeet-AI/tool"
)

// Tool adapts fn to tool.CallableTool.
type Tool[I, O any] struct {
	decl *tool.Declaration
	fn   func(context.Context, I) (O, error)
}

var _ tool.CallableTool = (*Tool[struct{}, any])(nil)

// New wraps fn as a tool called name.
func New[I, O any](name, description string, fn func(context.Context, I) (O, error)) *Tool[I, O] {
	return &Tool[I, O]{
		decl: &tool.Declaration{
			Name:         name,
			Description:  description,
			InputSchema:  itool.GenerateJSONSchema(reflect.TypeFor[I]()),
			OutputSchema: itool.GenerateJSONSchema(reflect.TypeFor[O]()),
		},
		fn: fn,
	}
}

// Call decodes jsonArgs into I and invokes the function. Empty or null
// arguments call it with the zero value.
func (t *Tool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var in I
	if args := bytes.TrimSpace(jsonArgs); len(args) > 0 && !bytes.Equal(args, []byte("null")) {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("%s: decode arguments: %w", t.decl.Name, err)
		}
	}
	return t.fn(ctx, in)
}

// Declaration implements tool.Tool.
func (t *Tool[I, O]) Declaration() *tool.Declaration {
	return t.decl
}
