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
	"strings"
)

// Errors.
var (
	ErrNoEntryPoint         = errors.New("graph must have an entry point")
	ErrEntryPointAlreadySet = errors.New("entry point already set")
	ErrThreadIDRequired     = errors.New("thread_id is required")
	ErrCheckpointNotFound   = errors.New("checkpoint not found")
	// ErrConcurrentWrite is returned by a CheckpointSaver when the thread
	// advanced past the sequence the writer started from.
	ErrConcurrentWrite = errors.New("concurrent checkpoint write")
)

// DuplicateNodeError is returned when a node name is declared twice.
type DuplicateNodeError struct {
	Node string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already exists", e.Node)
}

// UnknownNodeError is returned when an edge, entry point, interrupt marker or
// routing command names a node that was never declared.
type UnknownNodeError struct {
	Node string
	// Ref describes where the reference appeared, e.g. "edge target".
	Ref string
}

func (e *UnknownNodeError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("unknown node %q", e.Node)
	}
	return fmt.Sprintf("unknown node %q referenced by %s", e.Node, e.Ref)
}

// UnreachableNodeError lists nodes with no path from the entry node.
type UnreachableNodeError struct {
	Nodes []string
}

func (e *UnreachableNodeError) Error() string {
	return fmt.Sprintf("nodes unreachable from entry: %s", strings.Join(e.Nodes, ", "))
}

// UndeclaredOutcomeError is returned when a conditional edge predicate yields
// an outcome missing from its path map.
type UndeclaredOutcomeError struct {
	Node    string
	Outcome string
}

func (e *UndeclaredOutcomeError) Error() string {
	return fmt.Sprintf("conditional edge from %q returned undeclared outcome %q", e.Node, e.Outcome)
}

// FanOutError is returned when a node has more than one outgoing route.
// Runs are strictly sequential, so a node may have one static edge or one
// conditional edge, not both.
type FanOutError struct {
	Node string
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("node %q has more than one outgoing route", e.Node)
}

// PolicyConflictError is returned when a field's merge policy is redefined.
type PolicyConflictError struct {
	Field     string
	Existing  MergePolicy
	Requested MergePolicy
}

func (e *PolicyConflictError) Error() string {
	return fmt.Sprintf("field %q merge policy is %s, cannot change to %s",
		e.Field, e.Existing, e.Requested)
}

// InvalidThreadStateError is returned for operations not allowed in the
// thread's current state, such as resuming a thread that is not halted.
type InvalidThreadStateError struct {
	ThreadID string
	Op       string
	// Cursor is the thread's cursor; zero when the thread does not exist.
	Cursor Cursor
}

func (e *InvalidThreadStateError) Error() string {
	if e.Cursor.Kind == "" {
		return fmt.Sprintf("cannot %s thread %q: thread does not exist", e.Op, e.ThreadID)
	}
	return fmt.Sprintf("cannot %s thread %q in state %s", e.Op, e.ThreadID, e.Cursor)
}

// FaultKind classifies a run-level fault.
type FaultKind string

// Fault kinds.
const (
	FaultNodeExecution FaultKind = "node_execution"
	FaultNodePanic     FaultKind = "node_panic"
	FaultNodeTimeout   FaultKind = "node_timeout"
	FaultInvalidResult FaultKind = "invalid_result"
	FaultDefinition    FaultKind = "definition"
	FaultCheckpoint    FaultKind = "checkpoint"
	FaultCanceled      FaultKind = "canceled"
)

// Fault is a run-level failure tagged with the node it happened in. The
// thread's last checkpoint is left untouched, so re-invoking Run continues
// from the same node.
type Fault struct {
	Node  string
	Kind  FaultKind
	Cause error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault in node %q (%s): %v", f.Node, f.Kind, f.Cause)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// IsDefinitionError reports whether err stems from a graph definition bug.
// Such errors are never worth retrying.
func IsDefinitionError(err error) bool {
	var (
		unknown    *UnknownNodeError
		unreach    *UnreachableNodeError
		undeclared *UndeclaredOutcomeError
		dup        *DuplicateNodeError
		fanOut     *FanOutError
		policy     *PolicyConflictError
	)
	return errors.As(err, &unknown) || errors.As(err, &unreach) ||
		errors.As(err, &undeclared) || errors.As(err, &dup) ||
		errors.As(err, &fanOut) || errors.As(err, &policy) ||
		errors.Is(err, ErrNoEntryPoint) || errors.Is(err, ErrEntryPointAlreadySet)
}
