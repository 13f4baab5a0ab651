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
	"encoding/json"
	"fmt"
	"strconv"
)

// Revision loop outcomes.
const (
	OutcomeAccept = "accept"
	OutcomeRevise = "revise"
)

// RevisionLoop describes a bounded generate, critique and refine cycle kept
// entirely in state. The exit predicate depends only on the decision field
// and the revision counter, so the loop ends after at most max refinements
// however the critique decides.
type RevisionLoop struct {
	// DecisionKey holds the critique decision.
	DecisionKey string
	// CounterKey holds the number of refinements done so far.
	CounterKey string
	// MaxKey optionally holds a per-thread limit, overriding DefaultMax.
	MaxKey string
	// DefaultMax is the limit used when MaxKey is unset or absent.
	DefaultMax int
	// AcceptValue is the decision that ends the loop. Defaults to "accept".
	AcceptValue string
}

// Max returns the revision limit in effect for state.
func (l RevisionLoop) Max(state State) int {
	if l.MaxKey != "" {
		if v, ok := state[l.MaxKey]; ok {
			if n, err := toInt(v); err == nil {
				return n
			}
		}
	}
	return l.DefaultMax
}

// Count returns the number of refinements recorded in state.
func (l RevisionLoop) Count(state State) int {
	n, err := toInt(state[l.CounterKey])
	if err != nil {
		return 0
	}
	return n
}

// Decide returns OutcomeAccept when the decision is accepted or the counter
// reached the limit, and OutcomeRevise otherwise.
func (l RevisionLoop) Decide(state State) string {
	accept := l.AcceptValue
	if accept == "" {
		accept = OutcomeAccept
	}
	if decision, _ := state[l.DecisionKey].(string); decision == accept {
		return OutcomeAccept
	}
	if l.Count(state) >= l.Max(state) {
		return OutcomeAccept
	}
	return OutcomeRevise
}

// Condition adapts Decide to a ConditionalFunc.
func (l RevisionLoop) Condition() ConditionalFunc {
	return func(_ context.Context, state State) (string, error) {
		return l.Decide(state), nil
	}
}

// Next returns the update that records one more refinement.
func (l RevisionLoop) Next(state State) State {
	return State{l.CounterKey: l.Count(state) + 1}
}

// AddRevisionLoop wires critique to accept or refine and refine back to
// critique. Both nodes must already be declared.
func (sg *StateGraph) AddRevisionLoop(critique, refine, accept string, loop RevisionLoop) *StateGraph {
	sg.AddConditionalEdges(critique, loop.Condition(), map[string]string{
		OutcomeAccept: accept,
		OutcomeRevise: refine,
	})
	return sg.AddEdge(refine, critique)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case float32:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
