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
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	// StateKeyUserInput is the key of the user input.
	// Typically it remains constant across the graph.
	StateKeyUserInput = "user_input"
	// StateKeyLastResponse is the key of the last response.
	StateKeyLastResponse = "last_response"
	// StateKeyMessages is the key of the conversation history.
	// It uses the append policy so every node's turns survive in order.
	StateKeyMessages = "messages"
	// StateKeyMetadata is the key of the metadata.
	StateKeyMetadata = "metadata"
)

// State represents the state that flows through the graph.
// This is the shared data structure that flows between nodes.
type State map[string]any

// Clone returns a copy of the state. Slice values are copied so appending to
// the clone never writes into the original's backing array.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = copySlice(v)
	}
	return clone
}

// MergePolicy decides how a field's new value combines with its current one.
type MergePolicy string

// Merge policies.
const (
	// PolicyOverwrite replaces the current value. It is the default.
	PolicyOverwrite MergePolicy = "overwrite"
	// PolicyAppend concatenates new values to the existing ordered sequence.
	PolicyAppend MergePolicy = "append"
)

// StateReducer is a function that determines how state updates are merged.
// It takes existing and new values and returns the merged result.
type StateReducer func(existing, update any) any

// StateField defines a field in the state schema with its merge policy and type.
type StateField struct {
	// Policy selects the built-in reducer. Ignored when Reducer is set.
	Policy MergePolicy
	// Type is the Go type of the field. When set, values decoded from a
	// checkpoint are converted back to it by Coerce.
	Type     reflect.Type
	Reducer  StateReducer
	Default  func() any
	Required bool
}

// StateSchema defines the structure and behavior of graph state.
type StateSchema struct {
	mu     sync.RWMutex
	Fields map[string]StateField
	errs   []error
}

// NewStateSchema creates a new state schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{
		Fields: make(map[string]StateField),
	}
}

// AddField adds a field to the state schema. Re-registering a field with a
// different policy is recorded as a *PolicyConflictError, reported by Err and
// by StateGraph.Compile; the original policy stays in effect.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field.Policy == "" {
		field.Policy = PolicyOverwrite
	}
	if field.Reducer == nil {
		switch field.Policy {
		case PolicyAppend:
			field.Reducer = AppendReducer
		default:
			field.Reducer = DefaultReducer
		}
	}
	if existing, ok := s.Fields[name]; ok && existing.Policy != field.Policy {
		s.errs = append(s.errs, &PolicyConflictError{
			Field:     name,
			Existing:  existing.Policy,
			Requested: field.Policy,
		})
		return s
	}
	s.Fields[name] = field
	return s
}

// Policy returns the merge policy of a field; unknown fields overwrite.
func (s *StateSchema) Policy(name string) MergePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.Fields[name]; ok {
		return f.Policy
	}
	return PolicyOverwrite
}

// Err reports schema definition errors.
func (s *StateSchema) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return errors.Join(s.errs...)
}

// ApplyUpdate merges update into currentState and returns the next state.
// currentState is not modified. Keys without a field definition overwrite.
func (s *StateSchema) ApplyUpdate(currentState State, update State) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := currentState.Clone()
	for key, updateValue := range update {
		field, exists := s.Fields[key]
		if !exists {
			result[key] = updateValue
			continue
		}
		currentValue, hasCurrentValue := result[key]
		if !hasCurrentValue && field.Default != nil {
			currentValue = field.Default()
		}
		result[key] = field.Reducer(currentValue, updateValue)
	}
	return result
}

// Validate validates a state against the schema.
func (s *StateSchema) Validate(state State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.sortedNames() {
		field := s.Fields[name]
		value, exists := state[name]
		if field.Required && !exists {
			return fmt.Errorf("required field %s is missing", name)
		}
		if exists && value != nil && field.Type != nil {
			valueType := reflect.TypeOf(value)
			if !valueType.AssignableTo(field.Type) {
				return fmt.Errorf("field %s has wrong type: expected %v, got %v",
					name, field.Type, valueType)
			}
		}
	}
	return nil
}

// Coerce converts values of typed fields back into their declared Go types.
// Checkpoints persisted as JSON come back as maps, []any and float64; Coerce
// restores e.g. []model.Message or int counters. Fields that fail to decode
// keep their raw value and are reported in the returned error.
func (s *StateSchema) Coerce(state State) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := state.Clone()
	var errs []error
	for name, field := range s.Fields {
		value, ok := out[name]
		if !ok || value == nil || field.Type == nil {
			continue
		}
		if reflect.TypeOf(value).AssignableTo(field.Type) {
			continue
		}
		target := reflect.New(field.Type)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           target.Interface(),
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
			continue
		}
		if err := decoder.Decode(value); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
			continue
		}
		out[name] = target.Elem().Interface()
	}
	return out, errors.Join(errs...)
}

func (s *StateSchema) sortedNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Common reducer functions.

// DefaultReducer overwrites the existing value with the update.
func DefaultReducer(existing, update any) any {
	return update
}

// AppendReducer concatenates update to the existing sequence. It accepts any
// slice type: a slice update is concatenated element-wise and a single value
// assignable to the element type is appended. When existing is not a sequence
// the update overwrites it. The result is always a fresh slice.
func AppendReducer(existing, update any) any {
	if update == nil {
		return existing
	}
	ev := reflect.ValueOf(existing)
	if existing == nil || ev.Kind() != reflect.Slice {
		return copySlice(update)
	}
	elemType := ev.Type().Elem()
	uv := reflect.ValueOf(update)

	var items []reflect.Value
	switch {
	case uv.Kind() == reflect.Slice || uv.Kind() == reflect.Array:
		items = make([]reflect.Value, 0, uv.Len())
		for i := 0; i < uv.Len(); i++ {
			item, ok := assignable(uv.Index(i), elemType)
			if !ok {
				return update
			}
			items = append(items, item)
		}
	default:
		item, ok := assignable(uv, elemType)
		if !ok {
			return update
		}
		items = []reflect.Value{item}
	}

	out := reflect.MakeSlice(ev.Type(), 0, ev.Len()+len(items))
	out = reflect.AppendSlice(out, ev)
	out = reflect.Append(out, items...)
	return out.Interface()
}

// MergeReducer merges update map into existing map.
func MergeReducer(existing, update any) any {
	existingMap, ok1 := existing.(map[string]any)
	updateMap, ok2 := update.(map[string]any)
	if !ok1 || !ok2 {
		return update
	}
	result := make(map[string]any, len(existingMap)+len(updateMap))
	for k, v := range existingMap {
		result[k] = v
	}
	for k, v := range updateMap {
		result[k] = v
	}
	return result
}

func assignable(v reflect.Value, to reflect.Type) (reflect.Value, bool) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(to), true
		}
		v = v.Elem()
	}
	if v.Type().AssignableTo(to) {
		return v, true
	}
	return reflect.Value{}, false
}

func copySlice(v any) any {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
