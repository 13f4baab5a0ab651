//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/checkpointtest"
)

func TestSaver(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) graph.CheckpointSaver {
		return NewSaver()
	})
}

func TestSaver_MaxHistory(t *testing.T) {
	s := NewSaver(WithMaxHistory(2))
	ctx := context.Background()
	for i := int64(0); i < 5; i++ {
		_, err := s.Save(ctx, graph.SaveRequest{ThreadID: "t", ParentSequence: i, Cursor: graph.At("n")})
		require.NoError(t, err)
	}
	cps, err := s.List(ctx, "t", 0)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, int64(5), cps[0].Sequence)

	// Trimming keeps sequence continuity for the next writer.
	_, err = s.Save(ctx, graph.SaveRequest{ThreadID: "t", ParentSequence: 5, Cursor: graph.Terminated()})
	require.NoError(t, err)
}

func TestSaver_ReturnsCopies(t *testing.T) {
	s := NewSaver()
	ctx := context.Background()
	_, err := s.Save(ctx, graph.SaveRequest{
		ThreadID: "t", Cursor: graph.At("n"), State: graph.State{"k": "v"},
	})
	require.NoError(t, err)

	cp, err := s.Load(ctx, "t")
	require.NoError(t, err)
	cp.State["k"] = "mutated"

	again, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "v", again.State["k"])
}
