//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/config"
	"github.com/phuocNg964/ProMeet-AI/graph"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestGraphCommand_Mermaid(t *testing.T) {
	t.Setenv("PROMEET_CHECKPOINT_BACKEND", config.CheckpointInMemory)
	out := execute(t, "graph", "meeting", "--format", "mermaid")
	for _, node := range []string{"stt", "analysis", "reflection", "refinement", "create_tasks"} {
		assert.Contains(t, out, node)
	}
}

func TestGraphCommand_DOTChat(t *testing.T) {
	t.Setenv("PROMEET_CHECKPOINT_BACKEND", config.CheckpointInMemory)
	out := execute(t, "graph", "chat", "--format", "dot")
	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, "router")
	assert.Contains(t, out, "tool_generator")
}

func TestNewSaver(t *testing.T) {
	s, err := newSaver(config.CheckpointConfig{Backend: config.CheckpointInMemory})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = newSaver(config.CheckpointConfig{
		Backend:    config.CheckpointSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "cp.db"),
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Save(ctx, graph.SaveRequest{ThreadID: "t", Cursor: graph.At("a"), State: graph.State{}})
	require.NoError(t, err)
	cp, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cp.Sequence)
	require.NoError(t, s.Close())
}

func TestNewSaver_SQLiteMaxHistory(t *testing.T) {
	s, err := newSaver(config.CheckpointConfig{
		Backend:    config.CheckpointSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "cp.db"),
		MaxHistory: 1,
	})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	for i := int64(0); i < 3; i++ {
		_, err = s.Save(ctx, graph.SaveRequest{ThreadID: "t", ParentSequence: i, Cursor: graph.At("a"), State: graph.State{}})
		require.NoError(t, err)
	}
	cps, err := s.List(ctx, "t", 0)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, int64(3), cps[0].Sequence)
}
