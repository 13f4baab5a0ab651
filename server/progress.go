//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"strings"
	"sync"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

// Progress records the node each thread is executing or last executed.
// Its hooks are installed on the agents' executors.
type Progress struct {
	mu    sync.RWMutex
	nodes map[string]string
}

// NewProgress creates an empty tracker.
func NewProgress() *Progress {
	return &Progress{nodes: make(map[string]string)}
}

// Hooks returns executor hooks that feed the tracker.
func (p *Progress) Hooks() *graph.NodeHooks {
	return graph.NewNodeHooks().Before(func(_ context.Context, info graph.NodeInfo, _ graph.State) (any, error) {
		p.mu.Lock()
		p.nodes[info.ThreadID] = info.Node
		p.mu.Unlock()
		return nil, nil
	})
}

// Node returns the latest node seen for a thread.
func (p *Progress) Node(threadID string) string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes[threadID]
}

// Forget drops a thread and every thread nested under it ("<thread>/...").
func (p *Progress) Forget(threadID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, threadID)
	prefix := threadID + "/"
	for id := range p.nodes {
		if strings.HasPrefix(id, prefix) {
			delete(p.nodes, id)
		}
	}
}

// Len returns the number of tracked threads.
func (p *Progress) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}
