//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTranscriber struct {
	calls int
	text  string
	err   error
}

func (c *countingTranscriber) Transcribe(context.Context, string) (string, error) {
	c.calls++
	return c.text, c.err
}

func TestFileCache_WritesHeaderAndReuses(t *testing.T) {
	dir := t.TempDir()
	inner := &countingTranscriber{text: "[00:00:01] An: hello"}
	cache := NewFileCache(dir, inner)

	got, err := cache.Transcribe(context.Background(), "/rec/standup.mp3")
	require.NoError(t, err)
	assert.Equal(t, inner.text, got)

	data, err := os.ReadFile(filepath.Join(dir, "standup_transcript.txt"))
	require.NoError(t, err)
	assert.Equal(t, "# Audio: /rec/standup.mp3\n[00:00:01] An: hello", string(data))

	// A fresh cache reads the file instead of calling the transcriber.
	other := NewFileCache(dir, inner)
	got, err = other.Transcribe(context.Background(), "/rec/standup.mp3")
	require.NoError(t, err)
	assert.Equal(t, inner.text, got)
	assert.Equal(t, 1, inner.calls)
}

func TestFileCache_StemCollision(t *testing.T) {
	dir := t.TempDir()
	inner := &countingTranscriber{text: "first"}
	cache := NewFileCache(dir, inner)
	_, err := cache.Transcribe(context.Background(), "/a/standup.mp3")
	require.NoError(t, err)

	inner.text = "second"
	got, err := NewFileCache(dir, inner).Transcribe(context.Background(), "/b/standup.wav")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, 2, inner.calls)
}

func TestFileCache_HeaderlessFileTrusted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_transcript.txt"), []byte("legacy"), 0o644))
	inner := &countingTranscriber{text: "new"}
	got, err := NewFileCache(dir, inner).Transcribe(context.Background(), "/x/old.m4a")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)
	assert.Zero(t, inner.calls)
}

func TestFileCache_PropagatesError(t *testing.T) {
	boom := errors.New("quota")
	cache := NewFileCache(t.TempDir(), &countingTranscriber{err: boom})
	_, err := cache.Transcribe(context.Background(), "/x/a.mp3")
	assert.ErrorIs(t, err, boom)
}

func TestCheckAudio(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, CheckAudio(filepath.Join(dir, "missing.mp3")), ErrAudioNotFound)
	assert.ErrorIs(t, CheckAudio(dir), ErrAudioNotFound)
	f := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(f, []byte{1}, 0o644))
	assert.NoError(t, CheckAudio(f))
}

func TestStatic(t *testing.T) {
	got, err := Static("  hi \n").Transcribe(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}
