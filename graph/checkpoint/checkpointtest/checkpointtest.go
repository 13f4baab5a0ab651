//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpointtest holds the behavior suite every
// graph.CheckpointSaver implementation must pass.
package checkpointtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

// Run runs the suite. newSaver must return an empty saver for every call.
func Run(t *testing.T, newSaver func(t *testing.T) graph.CheckpointSaver) {
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, newSaver(t)) })
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, newSaver(t)) })
	t.Run("StaleParent", func(t *testing.T) { testStaleParent(t, newSaver(t)) })
	t.Run("Patch", func(t *testing.T) { testPatch(t, newSaver(t)) })
	t.Run("PatchMissing", func(t *testing.T) { testPatchMissing(t, newSaver(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testList(t, newSaver(t)) })
	t.Run("DeleteThread", func(t *testing.T) { testDelete(t, newSaver(t)) })
	t.Run("ThreadsIndependent", func(t *testing.T) { testConcurrentThreads(t, newSaver(t)) })
	t.Run("EmptyThreadID", func(t *testing.T) { testEmptyThreadID(t, newSaver(t)) })
}

func save(t *testing.T, s graph.CheckpointSaver, thread string, parent int64, cursor graph.Cursor, state graph.State) *graph.Checkpoint {
	t.Helper()
	cp, err := s.Save(context.Background(), graph.SaveRequest{
		ThreadID:       thread,
		ParentSequence: parent,
		Cursor:         cursor,
		State:          state,
		Source:         graph.SourceLoop,
		Node:           "n",
	})
	require.NoError(t, err)
	return cp
}

func testLoadMissing(t *testing.T, s graph.CheckpointSaver) {
	cp, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func testSaveAndLoad(t *testing.T, s graph.CheckpointSaver) {
	ctx := context.Background()
	first := save(t, s, "t1", 0, graph.At("b"), graph.State{"count": 1, "name": "x"})
	assert.Equal(t, int64(1), first.Sequence)
	assert.NotEmpty(t, first.ID)

	second := save(t, s, "t1", 1, graph.Halted("c"), graph.State{"count": 2, "tags": []string{"a", "b"}})
	assert.Equal(t, int64(2), second.Sequence)

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Sequence)
	assert.Equal(t, graph.Halted("c"), got.Cursor)
	assert.Equal(t, graph.SourceLoop, got.Source)
	assert.Equal(t, "n", got.Node)
	// Values come back in their JSON shapes.
	assert.EqualValues(t, 2, got.State["count"])
	assert.Equal(t, []any{"a", "b"}, got.State["tags"])
}

func testStaleParent(t *testing.T, s graph.CheckpointSaver) {
	save(t, s, "t1", 0, graph.At("b"), graph.State{})
	_, err := s.Save(context.Background(), graph.SaveRequest{
		ThreadID: "t1", ParentSequence: 0, Cursor: graph.At("c"), State: graph.State{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrConcurrentWrite))

	got, err := s.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, graph.At("b"), got.Cursor)
}

func testPatch(t *testing.T, s graph.CheckpointSaver) {
	ctx := context.Background()
	save(t, s, "t1", 0, graph.Halted("review"), graph.State{"keep": "k", "edit": "old"})

	cp, err := s.Patch(ctx, "t1", graph.State{"edit": "new", "added": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cp.Sequence)
	assert.Equal(t, graph.Halted("review"), cp.Cursor)
	assert.Equal(t, graph.SourceUpdate, cp.Source)

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, graph.Halted("review"), got.Cursor)
	assert.Equal(t, "k", got.State["keep"])
	assert.Equal(t, "new", got.State["edit"])
	assert.Equal(t, true, got.State["added"])

	// A custom merge sees the stored state.
	_, err = s.Patch(ctx, "t1", graph.State{"edit": "!"}, func(cur, upd graph.State) graph.State {
		out := cur.Clone()
		out["edit"] = cur["edit"].(string) + upd["edit"].(string)
		return out
	})
	require.NoError(t, err)
	got, err = s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "new!", got.State["edit"])
	assert.Equal(t, int64(3), got.Sequence)
}

func testPatchMissing(t *testing.T, s graph.CheckpointSaver) {
	_, err := s.Patch(context.Background(), "nope", graph.State{"a": 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrCheckpointNotFound))
}

func testList(t *testing.T, s graph.CheckpointSaver) {
	for i := int64(0); i < 4; i++ {
		save(t, s, "t1", i, graph.At(fmt.Sprintf("n%d", i)), graph.State{"i": i})
	}
	all, err := s.List(context.Background(), "t1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, cp := range all {
		assert.Equal(t, int64(4-i), cp.Sequence)
	}
	two, err := s.List(context.Background(), "t1", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, int64(4), two[0].Sequence)
	assert.Equal(t, int64(3), two[1].Sequence)
}

func testDelete(t *testing.T, s graph.CheckpointSaver) {
	ctx := context.Background()
	save(t, s, "t1", 0, graph.Terminated(), graph.State{})
	save(t, s, "t2", 0, graph.Terminated(), graph.State{})
	require.NoError(t, s.DeleteThread(ctx, "t1"))

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.Load(ctx, "t2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func testConcurrentThreads(t *testing.T, s graph.CheckpointSaver) {
	const threads, steps = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, threads)
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("thread-%d", i)
			for seq := int64(0); seq < steps; seq++ {
				if _, err := s.Save(context.Background(), graph.SaveRequest{
					ThreadID: id, ParentSequence: seq, Cursor: graph.At("n"), State: graph.State{"i": i},
				}); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for i := 0; i < threads; i++ {
		cp, err := s.Load(context.Background(), fmt.Sprintf("thread-%d", i))
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, int64(steps), cp.Sequence)
		assert.EqualValues(t, i, cp.State["i"])
	}
}

func testEmptyThreadID(t *testing.T, s graph.CheckpointSaver) {
	_, err := s.Load(context.Background(), "")
	assert.ErrorIs(t, err, graph.ErrThreadIDRequired)
	_, err = s.Save(context.Background(), graph.SaveRequest{Cursor: graph.At("a")})
	assert.ErrorIs(t, err, graph.ErrThreadIDRequired)
}
