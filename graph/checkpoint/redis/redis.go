//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides Redis-based checkpoint storage implementation
// for graph execution state persistence and recovery.
//
// Each thread is one Redis list of JSON checkpoints, oldest first. Appends
// use WATCH on the thread key so a stale writer fails instead of forking the
// thread.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

// DefaultPrefix is the default key prefix.
const DefaultPrefix = "promeet:checkpoint:"

// DefaultMaxHistory is the default number of checkpoints kept per thread.
const DefaultMaxHistory = 100

// Saver is a Redis-backed implementation of graph.CheckpointSaver.
type Saver struct {
	client     backend.UniversalClient
	prefix     string
	ttl        time.Duration
	maxHistory int64
}

// Option configures a Saver.
type Option func(*Saver)

// WithPrefix sets the key prefix for threads.
func WithPrefix(prefix string) Option {
	return func(s *Saver) {
		s.prefix = prefix
	}
}

// WithTTL sets the expiration of a thread, refreshed on every write.
// Zero keeps threads forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Saver) {
		s.ttl = ttl
	}
}

// WithMaxHistory caps the checkpoints kept per thread.
// Values below one keep only the latest checkpoint.
func WithMaxHistory(n int) Option {
	return func(s *Saver) {
		if n < 1 {
			n = 1
		}
		s.maxHistory = int64(n)
	}
}

// New connects to the Redis server at url, e.g. "redis://localhost:6379/0".
func New(url string, opts ...Option) (*Saver, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient creates a saver from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Saver {
	s := &Saver{
		client:     client,
		prefix:     DefaultPrefix,
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Saver) key(threadID string) string {
	return s.prefix + threadID
}

// Load returns the latest checkpoint of the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	return latest(ctx, s.client, s.key(threadID))
}

// Save appends a checkpoint.
func (s *Saver) Save(ctx context.Context, req graph.SaveRequest) (*graph.Checkpoint, error) {
	if req.ThreadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var cp *graph.Checkpoint
	err := s.appendWatched(ctx, req.ThreadID, func(current *graph.Checkpoint) (*graph.Checkpoint, error) {
		var seq int64
		if current != nil {
			seq = current.Sequence
		}
		if seq != req.ParentSequence {
			return nil, fmt.Errorf("thread %s at seq %d, writer at %d: %w",
				req.ThreadID, seq, req.ParentSequence, graph.ErrConcurrentWrite)
		}
		cp = graph.NewCheckpoint(req)
		return cp, nil
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
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
	var cp *graph.Checkpoint
	err := s.appendWatched(ctx, threadID, func(current *graph.Checkpoint) (*graph.Checkpoint, error) {
		if current == nil {
			return nil, fmt.Errorf("patch thread %s: %w", threadID, graph.ErrCheckpointNotFound)
		}
		cp = graph.PatchedCheckpoint(current, update, merge)
		return cp, nil
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns up to limit checkpoints of the thread, newest first.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raws, err := s.client.LRange(ctx, s.key(threadID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	out := make([]*graph.Checkpoint, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		cp, err := graph.UnmarshalCheckpoint([]byte(raws[i]))
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
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Saver) Close() error {
	return s.client.Close()
}

// appendWatched reads the latest checkpoint under WATCH, lets next build the
// checkpoint to append and pushes it in a MULTI block.
func (s *Saver) appendWatched(
	ctx context.Context,
	threadID string,
	next func(current *graph.Checkpoint) (*graph.Checkpoint, error),
) error {
	key := s.key(threadID)
	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := latest(ctx, tx, key)
		if err != nil {
			return err
		}
		cp, err := next(current)
		if err != nil {
			return err
		}
		blob, err := graph.MarshalCheckpoint(cp)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p backend.Pipeliner) error {
			p.RPush(ctx, key, blob)
			p.LTrim(ctx, key, -s.maxHistory, -1)
			if s.ttl > 0 {
				p.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, backend.TxFailedErr) {
		return fmt.Errorf("thread %s: %w", threadID, graph.ErrConcurrentWrite)
	}
	return err
}

type indexer interface {
	LIndex(ctx context.Context, key string, index int64) *backend.StringCmd
}

func latest(ctx context.Context, c indexer, key string) (*graph.Checkpoint, error) {
	raw, err := c.LIndex(ctx, key, -1).Result()
	if errors.Is(err, backend.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return graph.UnmarshalCheckpoint([]byte(raw))
}
