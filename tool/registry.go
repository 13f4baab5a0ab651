//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Errors returned by the registry.
var (
	ErrToolNameEmpty    = errors.New("tool: name is empty")
	ErrToolNotCallable  = errors.New("tool: tool is not callable")
	ErrDuplicateTool    = errors.New("tool: tool already registered")
	ErrUnknownTool      = errors.New("tool: unknown capability")
	ErrInvalidArguments = errors.New("tool: invalid arguments")
)

// Outcome tags the result of a dispatch.
type Outcome string

// Dispatch outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeUnknown Outcome = "unknown"
	OutcomeInvalid Outcome = "invalid_arguments"
	OutcomeFailed  Outcome = "failed"
)

// Result is the tagged result of dispatching one invocation. An unknown name
// is a Result with OutcomeUnknown rather than a returned error.
type Result struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Value   any     `json:"value,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Content renders the result as the text recorded in conversation history.
func (r Result) Content() string {
	if !r.OK() {
		return r.Error
	}
	switch v := r.Value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(b)
}

type entry struct {
	tool   CallableTool
	schema *jsonschema.Schema
}

// Registry maps capability names to callable tools. Tools are registered once
// and looked up by name at dispatch time. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...CallableTool) (*Registry, error) {
	r := &Registry{tools: make(map[string]entry)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(tools ...CallableTool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a tool. Its input schema, when present, is compiled once so
// dispatch can validate arguments before invoking.
func (r *Registry) Register(t CallableTool) error {
	if t == nil || t.Declaration() == nil {
		return ErrToolNotCallable
	}
	decl := t.Declaration()
	name := strings.TrimSpace(decl.Name)
	if name == "" {
		return ErrToolNameEmpty
	}
	var compiled *jsonschema.Schema
	if decl.InputSchema != nil {
		var err error
		compiled, err = compileSchema(name, decl.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s: compile input schema: %w", name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = entry{tool: t, schema: compiled}
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (CallableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools keyed by name.
func (r *Registry) Tools() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Tool, len(r.tools))
	for n, e := range r.tools {
		out[n] = e.tool
	}
	return out
}

// Dispatch looks name up and invokes it with args. It never returns an error:
// unknown names, invalid arguments, invocation errors and panics all become a
// failure Result.
func (r *Registry) Dispatch(ctx context.Context, name string, args []byte) (res Result) {
	res.Name = name
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		res.Outcome = OutcomeUnknown
		res.Error = fmt.Sprintf("unknown capability: %s", name)
		return res
	}
	if len(strings.TrimSpace(string(args))) == 0 {
		args = []byte("{}")
	}
	if e.schema != nil {
		if err := validateArgs(e.schema, args); err != nil {
			res.Outcome = OutcomeInvalid
			res.Error = fmt.Sprintf("Error: %v: %v", ErrInvalidArguments, err)
			return res
		}
	}
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Value = nil
			res.Error = fmt.Sprintf("Error: tool %s panicked: %v", name, p)
		}
	}()
	v, err := e.tool.Call(ctx, args)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = fmt.Sprintf("Error: %v", err)
		return res
	}
	res.Outcome = OutcomeSuccess
	res.Value = v
	return res
}

func compileSchema(name string, s *Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s.Map())
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func validateArgs(s *jsonschema.Schema, args []byte) error {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return s.Validate(v)
}
