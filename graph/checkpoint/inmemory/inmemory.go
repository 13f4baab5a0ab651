//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides in-memory checkpoint storage implementation
// for graph execution state persistence and recovery.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

// DefaultMaxHistory is the default number of checkpoints kept per thread.
const DefaultMaxHistory = 100

// Saver provides an in-memory implementation of graph.CheckpointSaver.
// This is suitable for testing and debugging but not for production use.
// Checkpoints are copied in and out through their storage encoding, so
// callers observe the same shapes a persistent saver would return.
type Saver struct {
	mu      sync.RWMutex
	threads map[string][]*graph.Checkpoint // threadID -> checkpoints, oldest first
	// maxHistory limits the number of checkpoints per thread.
	maxHistory int
}

// Option configures a Saver.
type Option func(*Saver)

// WithMaxHistory sets the maximum number of checkpoints kept per thread.
// Values below one keep only the latest checkpoint.
func WithMaxHistory(n int) Option {
	return func(s *Saver) {
		if n < 1 {
			n = 1
		}
		s.maxHistory = n
	}
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver(opts ...Option) *Saver {
	s := &Saver{
		threads:    make(map[string][]*graph.Checkpoint),
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the latest checkpoint of the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	if len(cps) == 0 {
		return nil, nil
	}
	return graph.CopyCheckpoint(cps[len(cps)-1])
}

// Save appends a checkpoint.
func (s *Saver) Save(ctx context.Context, req graph.SaveRequest) (*graph.Checkpoint, error) {
	if req.ThreadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkParent(req.ThreadID, req.ParentSequence); err != nil {
		return nil, err
	}
	return s.appendLocked(graph.NewCheckpoint(req))
}

// Patch merges update into the latest checkpoint without moving the cursor.
func (s *Saver) Patch(
	ctx context.Context,
	threadID string,
	update graph.State,
	merge graph.MergeFunc,
) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.threads[threadID]
	if len(cps) == 0 {
		return nil, fmt.Errorf("patch thread %s: %w", threadID, graph.ErrCheckpointNotFound)
	}
	latest, err := graph.CopyCheckpoint(cps[len(cps)-1])
	if err != nil {
		return nil, err
	}
	return s.appendLocked(graph.PatchedCheckpoint(latest, update, merge))
}

// List returns up to limit checkpoints of the thread, newest first.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	n := len(cps)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*graph.Checkpoint, 0, n)
	for i := len(cps) - 1; i >= 0 && len(out) < n; i-- {
		cp, err := graph.CopyCheckpoint(cps[i])
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// DeleteThread removes all checkpoints of the thread.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Close clears the saver.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string][]*graph.Checkpoint)
	return nil
}

func (s *Saver) checkParent(threadID string, parent int64) error {
	var latest int64
	if cps := s.threads[threadID]; len(cps) > 0 {
		latest = cps[len(cps)-1].Sequence
	}
	if latest != parent {
		return fmt.Errorf("thread %s at seq %d, writer at %d: %w",
			threadID, latest, parent, graph.ErrConcurrentWrite)
	}
	return nil
}

func (s *Saver) appendLocked(cp *graph.Checkpoint) (*graph.Checkpoint, error) {
	stored, err := graph.CopyCheckpoint(cp)
	if err != nil {
		return nil, err
	}
	cps := append(s.threads[cp.ThreadID], stored)
	if len(cps) > s.maxHistory {
		cps = append([]*graph.Checkpoint(nil), cps[len(cps)-s.maxHistory:]...)
	}
	s.threads[cp.ThreadID] = cps
	return cp, nil
}
