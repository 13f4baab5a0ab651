//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package speech defines the transcription capability used by the meeting
// workflow and a file cache that keeps transcripts next to their audio path.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phuocNg964/ProMeet-AI/log"
)

// ErrAudioNotFound is returned when the audio file does not exist.
var ErrAudioNotFound = errors.New("speech: audio file not found")

// audioHeader prefixes the first line of a cached transcript file.
const audioHeader = "# Audio: "

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioPath string) (string, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}

// Static returns a Transcriber that always yields text. It is used for demos
// and for hosts that receive transcripts out of band.
func Static(text string) Transcriber {
	return TranscriberFunc(func(context.Context, string) (string, error) {
		return strings.TrimSpace(text), nil
	})
}

// CheckAudio reports ErrAudioNotFound when path does not name a regular file.
func CheckAudio(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrAudioNotFound, path)
	}
	return nil
}

// FileCache stores transcripts as <dir>/<audio stem>_transcript.txt. The
// first line records the audio path so two recordings sharing a stem do not
// read each other's transcript.
type FileCache struct {
	dir   string
	inner Transcriber

	mu     sync.Mutex
	memory map[string]string
}

// NewFileCache wraps inner with a transcript cache rooted at dir.
func NewFileCache(dir string, inner Transcriber) *FileCache {
	return &FileCache{dir: dir, inner: inner, memory: make(map[string]string)}
}

// Path returns the cache file used for audioPath.
func (c *FileCache) Path(audioPath string) string {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return filepath.Join(c.dir, stem+"_transcript.txt")
}

// Transcribe returns the cached transcript for audioPath or asks the wrapped
// Transcriber and stores the result.
func (c *FileCache) Transcribe(ctx context.Context, audioPath string) (string, error) {
	c.mu.Lock()
	text, ok := c.memory[audioPath]
	c.mu.Unlock()
	if ok {
		return text, nil
	}
	if text, ok := c.readFile(audioPath); ok {
		log.Infof("using cached transcript %s", c.Path(audioPath))
		c.remember(audioPath, text)
		return text, nil
	}
	text, err := c.inner.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	if err := c.writeFile(audioPath, text); err != nil {
		log.Warnf("cache transcript for %s: %v", audioPath, err)
	}
	c.remember(audioPath, text)
	log.Infof("transcribed %s (%d chars)", audioPath, len(text))
	return text, nil
}

func (c *FileCache) remember(audioPath, text string) {
	c.mu.Lock()
	c.memory[audioPath] = text
	c.mu.Unlock()
}

func (c *FileCache) readFile(audioPath string) (string, bool) {
	data, err := os.ReadFile(c.Path(audioPath))
	if err != nil {
		return "", false
	}
	content := string(data)
	first, rest, _ := strings.Cut(content, "\n")
	if !strings.HasPrefix(first, audioHeader) {
		// Files written without a header are trusted as-is.
		return content, true
	}
	if strings.TrimPrefix(first, audioHeader) != audioPath {
		return "", false
	}
	return rest, true
}

func (c *FileCache) writeFile(audioPath, text string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.Path(audioPath), []byte(audioHeader+audioPath+"\n"+text), 0o644)
}
