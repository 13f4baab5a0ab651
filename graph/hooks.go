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
	"time"
)

// NodeInfo identifies one node invocation to hooks.
type NodeInfo struct {
	ThreadID string
	Node     string
	Type     NodeType
	// Sequence is the checkpoint the node starts from.
	Sequence int64
	// Step counts node invocations within one Run or Resume call.
	Step    int
	Started time.Time
}

// BeforeNodeHook runs before a node. A non-nil result is used instead of
// invoking the node; an error faults it.
type BeforeNodeHook func(ctx context.Context, info NodeInfo, state State) (any, error)

// AfterNodeHook runs after a node returned. A non-nil result replaces the
// node's result; an error faults it.
type AfterNodeHook func(ctx context.Context, info NodeInfo, state State, result any) (any, error)

// FaultHook observes a node fault. It cannot change it.
type FaultHook func(ctx context.Context, info NodeInfo, fault *Fault)

// NodeHooks groups hooks run around node invocations, in registration order.
type NodeHooks struct {
	before []BeforeNodeHook
	after  []AfterNodeHook
	fault  []FaultHook
}

// NewNodeHooks creates an empty hook set.
func NewNodeHooks() *NodeHooks {
	return &NodeHooks{}
}

// Before adds a before-node hook.
func (h *NodeHooks) Before(fn BeforeNodeHook) *NodeHooks {
	h.before = append(h.before, fn)
	return h
}

// After adds an after-node hook.
func (h *NodeHooks) After(fn AfterNodeHook) *NodeHooks {
	h.after = append(h.after, fn)
	return h
}

// OnFault adds a fault hook.
func (h *NodeHooks) OnFault(fn FaultHook) *NodeHooks {
	h.fault = append(h.fault, fn)
	return h
}

// runBefore stops at the first hook that returns a result or an error.
func (h *NodeHooks) runBefore(ctx context.Context, info NodeInfo, state State) (any, error) {
	if h == nil {
		return nil, nil
	}
	for _, fn := range h.before {
		if res, err := fn(ctx, info, state); err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

func (h *NodeHooks) runAfter(ctx context.Context, info NodeInfo, state State, result any) (any, error) {
	if h == nil {
		return result, nil
	}
	for _, fn := range h.after {
		res, err := fn(ctx, info, state, result)
		if err != nil {
			return nil, err
		}
		if res != nil {
			result = res
		}
	}
	return result, nil
}

func (h *NodeHooks) runFault(ctx context.Context, info NodeInfo, fault *Fault) {
	if h == nil {
		return
	}
	for _, fn := range h.fault {
		fn(ctx, info, fault)
	}
}

// chainHooks returns executor hooks followed by node hooks.
func chainHooks(executor, node *NodeHooks) *NodeHooks {
	if executor == nil {
		return node
	}
	if node == nil {
		return executor
	}
	return &NodeHooks{
		before: append(append([]BeforeNodeHook(nil), executor.before...), node.before...),
		after:  append(append([]AfterNodeHook(nil), executor.after...), node.after...),
		fault:  append(append([]FaultHook(nil), executor.fault...), node.fault...),
	}
}
