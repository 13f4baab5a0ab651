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
	"time"

	"github.com/google/uuid"
)

// CursorKind is the kind of a thread cursor.
type CursorKind string

// Cursor kinds.
const (
	// CursorNode points at the next node to execute. A brand-new thread
	// starts at the entry node.
	CursorNode CursorKind = "node"
	// CursorHalted marks a thread paused before an interrupt node.
	CursorHalted CursorKind = "halted"
	// CursorTerminated marks a thread that reached the end marker.
	CursorTerminated CursorKind = "terminated"
)

// Cursor records where a thread is in the graph.
type Cursor struct {
	Kind CursorKind `json:"kind"`
	Node string     `json:"node,omitempty"`
}

// At returns a cursor pointing at node.
func At(node string) Cursor { return Cursor{Kind: CursorNode, Node: node} }

// Halted returns a cursor halted before node.
func Halted(node string) Cursor { return Cursor{Kind: CursorHalted, Node: node} }

// Terminated returns the terminal cursor.
func Terminated() Cursor { return Cursor{Kind: CursorTerminated} }

// IsHalted reports whether the cursor is HALTED.
func (c Cursor) IsHalted() bool { return c.Kind == CursorHalted }

// IsTerminated reports whether the cursor is TERMINATED.
func (c Cursor) IsTerminated() bool { return c.Kind == CursorTerminated }

func (c Cursor) String() string {
	switch c.Kind {
	case CursorHalted:
		return fmt.Sprintf("HALTED(%s)", c.Node)
	case CursorTerminated:
		return "TERMINATED"
	case CursorNode:
		return c.Node
	default:
		return "<none>"
	}
}

// CheckpointSource describes why a checkpoint was written.
type CheckpointSource string

// Checkpoint sources.
const (
	// SourceInput is written when a new thread is created, before any node runs.
	SourceInput CheckpointSource = "input"
	// SourceLoop is written after a node invocation.
	SourceLoop CheckpointSource = "loop"
	// SourceInterrupt is written when a run halts before an interrupt node.
	SourceInterrupt CheckpointSource = "interrupt"
	// SourceUpdate is written by Patch.
	SourceUpdate CheckpointSource = "update"
)

// Checkpoint is an immutable snapshot of a thread's state and cursor.
type Checkpoint struct {
	ThreadID string `json:"thread_id"`
	ID       string `json:"id"`
	// Sequence increases by one with every write to the thread.
	Sequence int64            `json:"seq"`
	Cursor   Cursor           `json:"cursor"`
	State    State            `json:"state"`
	Source   CheckpointSource `json:"source"`
	// Node is the node whose invocation produced this checkpoint, if any.
	Node      string    `json:"node,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// SaveRequest describes a checkpoint append.
type SaveRequest struct {
	ThreadID string
	// ParentSequence is the sequence the writer started from, 0 for a new
	// thread. Save fails with ErrConcurrentWrite if it is stale.
	ParentSequence int64
	Cursor         Cursor
	State          State
	Source         CheckpointSource
	Node           string
}

// MergeFunc merges a partial update into a state.
type MergeFunc func(current, update State) State

// CheckpointSaver persists checkpoints per thread. Implementations must be
// safe for concurrent use across thread ids and serialize writes within one.
type CheckpointSaver interface {
	// Load returns the latest checkpoint of the thread, or nil if none exists.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	// Save appends a checkpoint with sequence ParentSequence+1.
	Save(ctx context.Context, req SaveRequest) (*Checkpoint, error)
	// Patch merges update into the latest checkpoint's state and appends the
	// result with the cursor unchanged. It returns ErrCheckpointNotFound when
	// the thread has no checkpoint.
	Patch(ctx context.Context, threadID string, update State, merge MergeFunc) (*Checkpoint, error)
	// List returns up to limit checkpoints, newest first. limit <= 0 means all.
	List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error)
	// DeleteThread removes every checkpoint of the thread.
	DeleteThread(ctx context.Context, threadID string) error
	// Close releases resources held by the saver.
	Close() error
}

// NewCheckpoint builds the checkpoint described by req.
func NewCheckpoint(req SaveRequest) *Checkpoint {
	return &Checkpoint{
		ThreadID:  req.ThreadID,
		ID:        uuid.NewString(),
		Sequence:  req.ParentSequence + 1,
		Cursor:    req.Cursor,
		State:     req.State,
		Source:    req.Source,
		Node:      req.Node,
		Timestamp: time.Now().UTC(),
	}
}

// PatchedCheckpoint builds the checkpoint written by Patch on top of latest.
func PatchedCheckpoint(latest *Checkpoint, update State, merge MergeFunc) *Checkpoint {
	if merge == nil {
		merge = func(current, update State) State {
			out := current.Clone()
			for k, v := range update {
				out[k] = v
			}
			return out
		}
	}
	return NewCheckpoint(SaveRequest{
		ThreadID:       latest.ThreadID,
		ParentSequence: latest.Sequence,
		Cursor:         latest.Cursor,
		State:          merge(latest.State, update),
		Source:         SourceUpdate,
	})
}

// MarshalCheckpoint encodes a checkpoint for storage.
func MarshalCheckpoint(cp *Checkpoint) ([]byte, error) {
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint %s/%d: %w", cp.ThreadID, cp.Sequence, err)
	}
	return b, nil
}

// UnmarshalCheckpoint decodes a stored checkpoint.
func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if cp.State == nil {
		cp.State = State{}
	}
	return &cp, nil
}

// CopyCheckpoint returns a deep copy made through the storage encoding, so
// in-memory stores hand out the same shapes as persistent ones.
func CopyCheckpoint(cp *Checkpoint) (*Checkpoint, error) {
	b, err := MarshalCheckpoint(cp)
	if err != nil {
		return nil, err
	}
	return UnmarshalCheckpoint(b)
}
